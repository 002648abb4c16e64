package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Booking tiers.
const (
	TierInstant = "INSTANT"
	TierRequest = "REQUEST"
	TierInquiry = "INQUIRY"
)

// Booking statuses. A booking is never deleted, only status-transitioned.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusDeclined  = "declined"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

// Booking is a request to consume a service at a given time or slot.
type Booking struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	CustomerID     uuid.UUID       `db:"customer_id" json:"customer_id"`
	VendorID       uuid.UUID       `db:"vendor_id" json:"vendor_id"`
	ServiceID      uuid.UUID       `db:"service_id" json:"service_id"`
	Status         string          `db:"status" json:"status"`
	Tier           string          `db:"tier" json:"tier"`
	StartsAt       *time.Time      `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt         *time.Time      `db:"ends_at" json:"ends_at,omitempty"`
	TotalPrice     decimal.Decimal `db:"total_price" json:"total_price"`
	Currency       string          `db:"currency" json:"currency"`
	DepositPercent int             `db:"deposit_percent" json:"deposit_percent"`
	DepositAmount  decimal.Decimal `db:"deposit_amount" json:"deposit_amount"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`

	Items []BookingItem `json:"items,omitempty"`
}

// BookingItem is one selected price list position captured at booking time.
// Prices are snapshotted so later listing edits cannot change a booking.
type BookingItem struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	BookingID       uuid.UUID        `db:"booking_id" json:"booking_id"`
	PriceListItemID *uuid.UUID       `db:"price_list_item_id" json:"price_list_item_id,omitempty"`
	Description     string           `db:"description" json:"description"`
	PricingMode     string           `db:"pricing_mode" json:"pricing_mode"`
	BillingType     string           `db:"billing_type" json:"billing_type"`
	UnitPrice       *decimal.Decimal `db:"unit_price" json:"unit_price,omitempty"`
	DurationMinutes *int             `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
}

// IsActive reports whether the booking still occupies capacity.
func (b *Booking) IsActive() bool {
	return b.Status != BookingStatusCancelled && b.Status != BookingStatusDeclined
}

// bookingTransitions is the exhaustive transition table for booking statuses.
var bookingTransitions = map[string][]string{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusDeclined, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled},
	BookingStatusDeclined:  {},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// CanTransitionTo reports whether the booking may move to the target status.
func (b *Booking) CanTransitionTo(target string) bool {
	for _, allowed := range bookingTransitions[b.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}
