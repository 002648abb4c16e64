package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/mediation"
)

// PaymentCapability is the external hold/capture/refund facility. Handles
// are opaque gateway references.
type PaymentCapability interface {
	AuthorizeHold(ctx context.Context, amount decimal.Decimal, currency string, customerID uuid.UUID) (string, error)
	Capture(ctx context.Context, ref string) (string, error)
	Refund(ctx context.Context, ref string, amount decimal.Decimal) (string, error)
	Void(ctx context.Context, ref string) error
}

// MediationCapability proposes a phase-2 settlement for a dispute.
type MediationCapability interface {
	Propose(ctx context.Context, dispute mediation.DisputeContext) (*mediation.Proposal, error)
}

// DecisionCapability produces the phase-3 decision held for admin review.
type DecisionCapability interface {
	Propose(ctx context.Context, dispute mediation.DisputeContext) (*mediation.Proposal, error)
}

// NotificationSink informs a party of a state change. Fire and forget: a
// sink failure never rolls back the transition that triggered it.
type NotificationSink interface {
	Notify(userID uuid.UUID, eventType string, payload any)
}

// Clock abstracts time.Now for deterministic deadline tests.
type Clock func() time.Time
