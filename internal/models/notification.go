package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Notification event types emitted by the booking, escrow and dispute flows.
const (
	EventBookingCreated       = "booking_created"
	EventBookingConfirmed     = "booking_confirmed"
	EventBookingDeclined      = "booking_declined"
	EventBookingCancelled     = "booking_cancelled"
	EventEscrowHeld           = "escrow_held"
	EventEscrowCaptured       = "escrow_captured"
	EventEscrowRefunded       = "escrow_refunded"
	EventEscrowReleased       = "escrow_released"
	EventDisputeOpened        = "dispute_opened"
	EventDisputePhaseAdvanced = "dispute_phase_advanced"
	EventDisputeResolved      = "dispute_resolved"
)

// Notification is one entry of a user's notification feed.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
