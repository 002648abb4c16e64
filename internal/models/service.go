package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scheduling types. TIME_BOUND services are booked against calendar slots,
// CAPACITY_BOUND services against a concurrent order limit.
const (
	SchedulingTimeBound     = "TIME_BOUND"
	SchedulingCapacityBound = "CAPACITY_BOUND"
)

// Price list item billing types.
const (
	BillingOnce        = "once"
	BillingPerDuration = "per_duration"
)

// Price list item pricing modes.
const (
	PricingFixed   = "fixed"
	PricingHourly  = "hourly"
	PricingInquire = "inquire"
)

// Service is a vendor's offering.
type Service struct {
	ID                    uuid.UUID `db:"id" json:"id"`
	VendorID              uuid.UUID `db:"vendor_id" json:"vendor_id"`
	Title                 string    `db:"title" json:"title"`
	Description           *string   `db:"description" json:"description,omitempty"`
	SchedulingType        string    `db:"scheduling_type" json:"scheduling_type"`
	ConcurrentCapacity    int       `db:"concurrent_capacity" json:"concurrent_capacity"`
	MaxConcurrentOrders   int       `db:"max_concurrent_orders" json:"max_concurrent_orders"`
	InstantBookingEnabled bool      `db:"instant_booking_enabled" json:"instant_booking_enabled"`
	TurnaroundHours       *int      `db:"turnaround_hours" json:"turnaround_hours,omitempty"`
	MinLeadTimeHours      int       `db:"min_lead_time_hours" json:"min_lead_time_hours"`
	IsArchived            bool      `db:"is_archived" json:"is_archived"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`

	PriceList []PriceListItem `json:"price_list,omitempty"`
}

// PriceListItem is one position of a service's price list. Items live inside
// their service and carry their ordering in Position.
type PriceListItem struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	ServiceID        uuid.UUID        `db:"service_id" json:"service_id"`
	Position         int              `db:"position" json:"position"`
	Description      string           `db:"description" json:"description"`
	Price            *decimal.Decimal `db:"price" json:"price,omitempty"`
	Unit             *string          `db:"unit" json:"unit,omitempty"`
	BillingType      string           `db:"billing_type" json:"billing_type"`
	PricingMode      string           `db:"pricing_mode" json:"pricing_mode"`
	EstimatedMinutes *int             `db:"estimated_minutes" json:"estimated_minutes,omitempty"`
}

// AvailabilityBlock is a vendor-defined blackout window for a TIME_BOUND
// service. A requested slot intersecting a block is unavailable regardless
// of remaining capacity.
type AvailabilityBlock struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Overlaps reports whether the block intersects the half-open window
// [start, end).
func (b AvailabilityBlock) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && start.Before(b.EndsAt)
}
