package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow transaction statuses. captured, refunded and released are terminal
// except that captured funds may still be refunded by a dispute outcome.
const (
	EscrowStatusHeld              = "held"
	EscrowStatusCaptured          = "captured"
	EscrowStatusPartiallyRefunded = "partially_refunded"
	EscrowStatusRefunded          = "refunded"
	EscrowStatusReleased          = "released"
)

// EscrowTransaction holds funds against exactly one booking. The amount is
// fixed at creation and only ever decreases through refunds.
type EscrowTransaction struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BookingID      uuid.UUID       `db:"booking_id" json:"booking_id"`
	CustomerID     uuid.UUID       `db:"customer_id" json:"customer_id"`
	VendorID       uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	RefundedAmount decimal.Decimal `db:"refunded_amount" json:"refunded_amount"`
	Currency       string          `db:"currency" json:"currency"`
	Status         string          `db:"status" json:"status"`
	PaymentRef     string          `db:"payment_ref" json:"payment_ref"`
	CaptureRef     *string         `db:"capture_ref" json:"capture_ref,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
	ClosedAt       *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
}

// escrowTransitions is the exhaustive transition table for escrow statuses.
var escrowTransitions = map[string][]string{
	EscrowStatusHeld:              {EscrowStatusCaptured, EscrowStatusPartiallyRefunded, EscrowStatusRefunded, EscrowStatusReleased},
	EscrowStatusCaptured:          {EscrowStatusPartiallyRefunded, EscrowStatusRefunded, EscrowStatusReleased},
	EscrowStatusPartiallyRefunded: {EscrowStatusReleased},
	EscrowStatusRefunded:          {},
	EscrowStatusReleased:          {},
}

// CanTransitionTo reports whether the escrow may move to the target status.
func (t *EscrowTransaction) CanTransitionTo(target string) bool {
	for _, allowed := range escrowTransitions[t.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (t *EscrowTransaction) IsTerminal() bool {
	return len(escrowTransitions[t.Status]) == 0
}

// Remaining returns the part of the escrow still held for the vendor.
func (t *EscrowTransaction) Remaining() decimal.Decimal {
	return t.Amount.Sub(t.RefundedAmount)
}
