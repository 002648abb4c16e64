package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Dispute statuses.
const (
	DisputeStatusOpen             = "open"
	DisputeStatusUnderReview      = "under_review"
	DisputeStatusResolvedCustomer = "resolved_customer"
	DisputeStatusResolvedVendor   = "resolved_vendor"
	DisputeStatusResolvedSplit    = "resolved_split"
	DisputeStatusClosed           = "closed"
)

// Dispute reasons.
const (
	DisputeReasonServiceNotProvided = "service_not_provided"
	DisputeReasonPoorQuality        = "poor_quality"
	DisputeReasonWrongService       = "wrong_service"
	DisputeReasonOvercharged        = "overcharged"
	DisputeReasonNoShow             = "no_show"
	DisputeReasonOther              = "other"
)

// DisputeReasons lists every accepted reason.
var DisputeReasons = []string{
	DisputeReasonServiceNotProvided,
	DisputeReasonPoorQuality,
	DisputeReasonWrongService,
	DisputeReasonOvercharged,
	DisputeReasonNoShow,
	DisputeReasonOther,
}

// IsValidDisputeReason reports whether the reason is one of the accepted set.
func IsValidDisputeReason(reason string) bool {
	for _, r := range DisputeReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Dispute is a disagreement raised against an escrow-backed booking.
// At most one dispute per booking may be active at a time.
type Dispute struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	BookingID    uuid.UUID       `db:"booking_id" json:"booking_id"`
	EscrowTxID   *uuid.UUID      `db:"escrow_tx_id" json:"escrow_tx_id,omitempty"`
	CustomerID   uuid.UUID       `db:"customer_id" json:"customer_id"`
	VendorID     uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	RaisedByRole string          `db:"raised_by_role" json:"raised_by_role"`
	Reason       string          `db:"reason" json:"reason"`
	Description  string          `db:"description" json:"description"`
	Status       string          `db:"status" json:"status"`
	EscrowAmount decimal.Decimal `db:"escrow_amount" json:"escrow_amount"`
	Resolution   *string         `db:"resolution" json:"resolution,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ResolvedAt   *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// IsActive reports whether the dispute still blocks escrow release.
func (d *Dispute) IsActive() bool {
	switch d.Status {
	case DisputeStatusOpen, DisputeStatusUnderReview:
		return true
	}
	return false
}

// IsResolved reports whether the dispute reached a resolved_* outcome.
func (d *Dispute) IsResolved() bool {
	switch d.Status {
	case DisputeStatusResolvedCustomer, DisputeStatusResolvedVendor, DisputeStatusResolvedSplit:
		return true
	}
	return false
}

// DisputeEvidence is a file reference attached to a dispute by either party.
type DisputeEvidence struct {
	ID         uuid.UUID `db:"id" json:"id"`
	DisputeID  uuid.UUID `db:"dispute_id" json:"dispute_id"`
	UploaderID uuid.UUID `db:"uploader_id" json:"uploader_id"`
	FilePath   string    `db:"file_path" json:"file_path"`
	FileType   string    `db:"file_type" json:"file_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Settlement offer statuses.
const (
	SettlementPending    = "pending"
	SettlementAccepted   = "accepted"
	SettlementRejected   = "rejected"
	SettlementSuperseded = "superseded"
)

// SettlementOffer is one party's proposed split of the escrowed amount.
// CustomerAmount is the part refunded to the customer; the remainder goes to
// the vendor. Acceptance by the counterparty resolves the dispute directly.
type SettlementOffer struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	DisputeID      uuid.UUID       `db:"dispute_id" json:"dispute_id"`
	ProposedBy     uuid.UUID       `db:"proposed_by" json:"proposed_by"`
	CustomerAmount decimal.Decimal `db:"customer_amount" json:"customer_amount"`
	Message        string          `db:"message" json:"message"`
	Status         string          `db:"status" json:"status"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// OutcomeFor maps a settlement split to the dispute outcome it produces.
func (o *SettlementOffer) OutcomeFor(escrowAmount decimal.Decimal) string {
	switch {
	case o.CustomerAmount.IsZero():
		return DisputeStatusResolvedVendor
	case o.CustomerAmount.GreaterThanOrEqual(escrowAmount):
		return DisputeStatusResolvedCustomer
	default:
		return DisputeStatusResolvedSplit
	}
}

// Resolution phases. The sequence is strictly forward:
// phase_1 -> phase_2 -> phase_3_pending -> phase_3_ai|phase_3_external -> resolved.
const (
	PhaseNegotiation  = "phase_1"
	PhaseAIMediation  = "phase_2"
	PhaseDecisionWait = "phase_3_pending"
	PhaseDecisionAI   = "phase_3_ai"
	PhaseDecisionExt  = "phase_3_external"
	PhaseResolved     = "resolved"
)

// phaseRank orders phases so regression can be rejected. The two phase_3
// branches share a rank; they converge on resolved.
var phaseRank = map[string]int{
	PhaseNegotiation:  1,
	PhaseAIMediation:  2,
	PhaseDecisionWait: 3,
	PhaseDecisionAI:   4,
	PhaseDecisionExt:  4,
	PhaseResolved:     5,
}

// PhaseRank returns the ordinal of a phase, 0 for unknown.
func PhaseRank(phase string) int {
	return phaseRank[phase]
}

// DisputePhase tracks which resolution phase a dispute is in. Rows are
// appended to as phases advance, never rolled back.
type DisputePhase struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DisputeID    uuid.UUID  `db:"dispute_id" json:"dispute_id"`
	CurrentPhase string     `db:"current_phase" json:"current_phase"`

	Phase1StartedAt time.Time  `db:"phase1_started_at" json:"phase1_started_at"`
	Phase1Deadline  time.Time  `db:"phase1_deadline" json:"phase1_deadline"`
	Phase2StartedAt *time.Time `db:"phase2_started_at" json:"phase2_started_at,omitempty"`
	Phase2Deadline  *time.Time `db:"phase2_deadline" json:"phase2_deadline,omitempty"`
	Phase3StartedAt *time.Time `db:"phase3_started_at" json:"phase3_started_at,omitempty"`
	Phase3Deadline  *time.Time `db:"phase3_deadline" json:"phase3_deadline,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// AdvanceIfExpired returns the phase state after lazy deadline evaluation at
// the given instant. It is pure: the receiver is not mutated. An elapsed
// deadline forces progression by exactly one step and never resolves the
// dispute in either party's favor. phase_3_pending has no expiry of its own;
// it waits for the admin review.
func (p DisputePhase) AdvanceIfExpired(now time.Time, phase2Window, phase3Window time.Duration) (DisputePhase, bool) {
	switch p.CurrentPhase {
	case PhaseNegotiation:
		if !now.Before(p.Phase1Deadline) {
			started := now
			deadline := now.Add(phase2Window)
			p.CurrentPhase = PhaseAIMediation
			p.Phase2StartedAt = &started
			p.Phase2Deadline = &deadline
			p.UpdatedAt = now
			return p, true
		}
	case PhaseAIMediation:
		if p.Phase2Deadline != nil && !now.Before(*p.Phase2Deadline) {
			started := now
			deadline := now.Add(phase3Window)
			p.CurrentPhase = PhaseDecisionWait
			p.Phase3StartedAt = &started
			p.Phase3Deadline = &deadline
			p.UpdatedAt = now
			return p, true
		}
	}
	return p, false
}

// CanAdvanceTo reports whether moving to the target phase is a legal forward
// step. Skipping is allowed only through resolution (a phase 1 or phase 2
// settlement ends the dispute directly).
func (p DisputePhase) CanAdvanceTo(target string) bool {
	from, ok := phaseRank[p.CurrentPhase]
	if !ok {
		return false
	}
	to, ok := phaseRank[target]
	if !ok {
		return false
	}
	if target == PhaseResolved {
		return from < phaseRank[PhaseResolved]
	}
	return to == from+1
}
