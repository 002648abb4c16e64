package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the payload of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginRequest is the payload of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest is the payload of POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// PriceItemRequest is one price list position of a listing.
type PriceItemRequest struct {
	Description      string           `json:"description" binding:"required"`
	Price            *decimal.Decimal `json:"price"`
	Unit             *string          `json:"unit"`
	BillingType      string           `json:"billing_type" binding:"required"`
	PricingMode      string           `json:"pricing_mode" binding:"required"`
	EstimatedMinutes *int             `json:"estimated_minutes"`
}

// CreateListingRequest is the payload of POST /listings and PUT /listings/:id.
type CreateListingRequest struct {
	Title                 string             `json:"title" binding:"required"`
	Description           *string            `json:"description"`
	SchedulingType        string             `json:"scheduling_type" binding:"required"`
	ConcurrentCapacity    int                `json:"concurrent_capacity"`
	MaxConcurrentOrders   int                `json:"max_concurrent_orders"`
	InstantBookingEnabled bool               `json:"instant_booking_enabled"`
	TurnaroundHours       *int               `json:"turnaround_hours"`
	MinLeadTimeHours      int                `json:"min_lead_time_hours"`
	PriceList             []PriceItemRequest `json:"price_list" binding:"required"`
}

// CreateBlockRequest is the payload of POST /listings/:id/blocks.
type CreateBlockRequest struct {
	StartsAt time.Time `json:"starts_at" binding:"required"`
	EndsAt   time.Time `json:"ends_at" binding:"required"`
	Reason   *string   `json:"reason"`
}

// SelectedItemRequest names one price list position chosen for a booking.
type SelectedItemRequest struct {
	PriceListItemID string `json:"price_list_item_id" binding:"required"`
	DurationMinutes *int   `json:"duration_minutes"`
}

// CreateBookingRequest is the payload of POST /bookings and of the flow
// preview endpoint.
type CreateBookingRequest struct {
	ServiceID string                `json:"service_id" binding:"required"`
	Items     []SelectedItemRequest `json:"items" binding:"required"`
	StartsAt  *time.Time            `json:"starts_at"`
	EndsAt    *time.Time            `json:"ends_at"`
}

// RefundRequest is the payload of POST /escrow/:id/refund.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// RaiseDisputeRequest is the payload of POST /bookings/:id/disputes.
type RaiseDisputeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// ProposeSettlementRequest is the payload of POST /disputes/:id/settlements.
type ProposeSettlementRequest struct {
	CustomerAmount decimal.Decimal `json:"customer_amount"`
	Message        string          `json:"message"`
}

// ReviewDecisionRequest is the payload of POST /disputes/:id/review.
type ReviewDecisionRequest struct {
	Approve bool `json:"approve"`
}

// ResolveExternalRequest is the payload of POST /disputes/:id/external-resolution.
type ResolveExternalRequest struct {
	Outcome        string          `json:"outcome" binding:"required"`
	CustomerAmount decimal.Decimal `json:"customer_amount"`
	Resolution     string          `json:"resolution" binding:"required"`
}
