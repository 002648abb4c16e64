package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
)

// SelectedItem names one price list position chosen by the customer.
// DurationMinutes overrides the item's estimate for per_duration billing.
type SelectedItem struct {
	PriceListItemID uuid.UUID `json:"price_list_item_id"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}

// BookingFlowResult classifies a booking request into a tier and carries the
// computed payment requirements.
type BookingFlowResult struct {
	Tier                   string              `json:"tier"`
	CanProceed             bool                `json:"can_proceed"`
	RequiresVendorApproval bool                `json:"requires_vendor_approval"`
	InquireItems           []string            `json:"inquire_items,omitempty"`
	TotalAmount            decimal.Decimal     `json:"total_amount"`
	Currency               string              `json:"currency"`
	DepositPercent         int                 `json:"deposit_percent"`
	DepositAmount          decimal.Decimal     `json:"deposit_amount"`
	Availability           *AvailabilityResult `json:"availability,omitempty"`
}

// DepositPolicy maps vendor risk models to upfront percentages.
type DepositPolicy struct {
	GrowthPercent int
	SecurePercent int
}

// Percent returns the deposit percentage for a risk model. Unknown models
// fall back to the secure percentage.
func (p DepositPolicy) Percent(riskModel string) int {
	if riskModel == models.RiskModelGrowth {
		return p.GrowthPercent
	}
	return p.SecurePercent
}

// ServiceStore is the slice of the service repository the booking flow needs.
type ServiceStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	GetPriceListItems(ctx context.Context, serviceID uuid.UUID, itemIDs []uuid.UUID) ([]models.PriceListItem, error)
}

// BookingStore is the slice of the booking repository the service needs.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking, svc *models.Service) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int) ([]models.Booking, error)
}

// VendorStore resolves the vendor account for risk-model lookup.
type VendorStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// EscrowManager is the escrow surface the booking lifecycle drives.
type EscrowManager interface {
	Hold(ctx context.Context, booking *models.Booking) (*models.EscrowTransaction, error)
	Capture(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error)
	Void(ctx context.Context, bookingID uuid.UUID) error
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error)
}

// DefaultCurrency is applied to bookings; per-listing currencies are not
// supported yet.
const DefaultCurrency = "CHF"

// BookingService classifies booking requests and drives the booking
// lifecycle.
type BookingService struct {
	services     ServiceStore
	bookings     BookingStore
	vendors      VendorStore
	availability *AvailabilityService
	escrow       EscrowManager
	sink         NotificationSink
	deposits     DepositPolicy
}

func NewBookingService(
	services ServiceStore,
	bookings BookingStore,
	vendors VendorStore,
	availability *AvailabilityService,
	escrow EscrowManager,
	sink NotificationSink,
	deposits DepositPolicy,
) *BookingService {
	return &BookingService{
		services:     services,
		bookings:     bookings,
		vendors:      vendors,
		availability: availability,
		escrow:       escrow,
		sink:         sink,
		deposits:     deposits,
	}
}

// DetermineBookingFlow classifies a booking request.
//
// Any inquire item forces the INQUIRY tier without touching availability: a
// human vendor has to produce a quote first. Otherwise a failed availability
// check yields REQUEST, and a fully priced, available request is INSTANT
// when the listing allows it, REQUEST when the vendor wants to approve.
func (s *BookingService) DetermineBookingFlow(ctx context.Context, serviceID uuid.UUID, selected []SelectedItem, slot *Slot) (*BookingFlowResult, []models.BookingItem, *models.Service, error) {
	if len(selected) == 0 {
		return nil, nil, nil, apperror.New(apperror.ErrCodeValidation, "no price list items selected")
	}

	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, nil, nil, apperror.ErrServiceNotFound
		}
		return nil, nil, nil, err
	}
	if svc.IsArchived {
		return nil, nil, nil, apperror.New(apperror.ErrCodeValidation, "service is archived")
	}

	itemIDs := make([]uuid.UUID, len(selected))
	overrides := make(map[uuid.UUID]*int, len(selected))
	for i, sel := range selected {
		itemIDs[i] = sel.PriceListItemID
		overrides[sel.PriceListItemID] = sel.DurationMinutes
	}

	items, err := s.services.GetPriceListItems(ctx, serviceID, itemIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(items) != len(selected) {
		return nil, nil, nil, apperror.New(apperror.ErrCodeValidation, "unknown price list item selected")
	}

	vendor, err := s.vendors.GetByID(ctx, svc.VendorID)
	if err != nil {
		return nil, nil, nil, err
	}

	result := &BookingFlowResult{
		Currency:       DefaultCurrency,
		DepositPercent: s.deposits.Percent(vendor.RiskModel),
	}

	bookingItems, total, inquire, err := s.priceItems(items, overrides, slot)
	if err != nil {
		return nil, nil, nil, err
	}
	result.TotalAmount = total
	result.DepositAmount = depositFor(total, result.DepositPercent)

	if len(inquire) > 0 {
		result.Tier = models.TierInquiry
		result.CanProceed = true
		result.RequiresVendorApproval = true
		result.InquireItems = inquire
		return result, bookingItems, svc, nil
	}

	avail, err := s.availability.Check(ctx, svc, slot)
	if err != nil {
		return nil, nil, nil, err
	}
	result.Availability = avail

	if !avail.Available {
		result.Tier = models.TierRequest
		result.CanProceed = true
		result.RequiresVendorApproval = true
		return result, bookingItems, svc, nil
	}

	if svc.InstantBookingEnabled {
		result.Tier = models.TierInstant
		result.CanProceed = true
		result.RequiresVendorApproval = false
	} else {
		result.Tier = models.TierRequest
		result.CanProceed = true
		result.RequiresVendorApproval = true
	}
	return result, bookingItems, svc, nil
}

// priceItems snapshots the selected price list rows into booking items and
// sums the total. Inquire items price at zero until quoted.
func (s *BookingService) priceItems(items []models.PriceListItem, overrides map[uuid.UUID]*int, slot *Slot) ([]models.BookingItem, decimal.Decimal, []string, error) {
	total := decimal.Zero
	var inquire []string
	bookingItems := make([]models.BookingItem, 0, len(items))

	for _, item := range items {
		itemID := item.ID
		bi := models.BookingItem{
			PriceListItemID: &itemID,
			Description:     item.Description,
			PricingMode:     item.PricingMode,
			BillingType:     item.BillingType,
			UnitPrice:       item.Price,
			Amount:          decimal.Zero,
		}

		if item.PricingMode == models.PricingInquire {
			inquire = append(inquire, item.Description)
			bookingItems = append(bookingItems, bi)
			continue
		}

		if item.Price == nil {
			return nil, decimal.Zero, nil, apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("item %q has no price", item.Description))
		}
		if item.Price.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, nil, apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("item %q has a non-positive price", item.Description))
		}

		amount := *item.Price
		if item.BillingType == models.BillingPerDuration {
			minutes, err := durationMinutes(item, overrides[item.ID], slot)
			if err != nil {
				return nil, decimal.Zero, nil, err
			}
			bi.DurationMinutes = &minutes
			hours := decimal.NewFromInt(int64(minutes)).Div(decimal.NewFromInt(60))
			amount = item.Price.Mul(hours).Round(2)
		}

		bi.Amount = amount
		total = total.Add(amount)
		bookingItems = append(bookingItems, bi)
	}

	return bookingItems, total, inquire, nil
}

// durationMinutes resolves the billing duration of a per_duration item:
// explicit override, then the item's estimate, then the requested slot.
func durationMinutes(item models.PriceListItem, override *int, slot *Slot) (int, error) {
	if override != nil {
		if *override <= 0 {
			return 0, apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("item %q duration must be positive", item.Description))
		}
		return *override, nil
	}
	if item.EstimatedMinutes != nil && *item.EstimatedMinutes > 0 {
		return *item.EstimatedMinutes, nil
	}
	if slot != nil && slot.End.After(slot.Start) {
		return int(slot.End.Sub(slot.Start).Minutes()), nil
	}
	return 0, apperror.New(apperror.ErrCodeValidation,
		fmt.Sprintf("item %q needs a duration", item.Description))
}

// depositFor computes the upfront amount: total * percent / 100 rounded
// half-up to currency minor units.
func depositFor(total decimal.Decimal, percent int) decimal.Decimal {
	return total.
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(2)
}

// CreateBooking classifies the request and persists the booking. INSTANT
// bookings confirm immediately and move the total into escrow; REQUEST and
// INQUIRY bookings wait for the vendor.
func (s *BookingService) CreateBooking(ctx context.Context, customerID, serviceID uuid.UUID, selected []SelectedItem, slot *Slot) (*models.Booking, *BookingFlowResult, error) {
	flow, items, svc, err := s.DetermineBookingFlow(ctx, serviceID, selected, slot)
	if err != nil {
		return nil, nil, err
	}

	status := models.BookingStatusPending
	if flow.Tier == models.TierInstant {
		status = models.BookingStatusConfirmed
	}

	booking := &models.Booking{
		CustomerID:     customerID,
		VendorID:       svc.VendorID,
		ServiceID:      svc.ID,
		Status:         status,
		Tier:           flow.Tier,
		TotalPrice:     flow.TotalAmount,
		Currency:       flow.Currency,
		DepositPercent: flow.DepositPercent,
		DepositAmount:  flow.DepositAmount,
		Items:          items,
	}
	if slot != nil {
		start, end := slot.Start, slot.End
		booking.StartsAt = &start
		booking.EndsAt = &end
	}

	if err := s.bookings.Create(ctx, booking, svc); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityExhausted):
			return nil, flow, apperror.New(apperror.ErrCodeConflict, "the slot was taken by a concurrent booking")
		case errors.Is(err, repository.ErrSlotBlocked):
			return nil, flow, apperror.New(apperror.ErrCodeConflict, "the slot is blocked by the vendor")
		case errors.Is(err, repository.ErrServiceNotFound):
			return nil, flow, apperror.ErrServiceNotFound
		}
		return nil, flow, err
	}

	if flow.Tier == models.TierInstant {
		if _, err := s.escrow.Hold(ctx, booking); err != nil {
			// No orphaned bookings without their hold: undo the insert by
			// cancelling before surfacing the payment failure.
			_ = s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, models.BookingStatusCancelled)
			return nil, flow, err
		}
	}

	s.sink.Notify(booking.VendorID, models.EventBookingCreated, booking)
	s.sink.Notify(booking.CustomerID, models.EventBookingCreated, booking)
	return booking, flow, nil
}

// ConfirmBooking is the vendor accepting a pending REQUEST or quoted
// INQUIRY booking. Confirmation moves the booking total into escrow.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, vendorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.getOwned(ctx, bookingID, vendorID, true)
	if err != nil {
		return nil, err
	}
	if !booking.CanTransitionTo(models.BookingStatusConfirmed) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot confirm booking in status %q", booking.Status))
	}

	if err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, models.BookingStatusConfirmed); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "booking status changed concurrently")
		}
		return nil, err
	}
	booking.Status = models.BookingStatusConfirmed

	if booking.TotalPrice.GreaterThan(decimal.Zero) {
		if _, err := s.escrow.Hold(ctx, booking); err != nil {
			// Roll the confirm back so the customer can retry payment.
			_ = s.bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusConfirmed, models.BookingStatusPending)
			return nil, err
		}
	}

	s.sink.Notify(booking.CustomerID, models.EventBookingConfirmed, booking)
	return booking, nil
}

// DeclineBooking is the vendor refusing a pending booking.
func (s *BookingService) DeclineBooking(ctx context.Context, bookingID, vendorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.getOwned(ctx, bookingID, vendorID, true)
	if err != nil {
		return nil, err
	}
	if !booking.CanTransitionTo(models.BookingStatusDeclined) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot decline booking in status %q", booking.Status))
	}

	if err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, models.BookingStatusDeclined); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "booking status changed concurrently")
		}
		return nil, err
	}
	booking.Status = models.BookingStatusDeclined

	s.sink.Notify(booking.CustomerID, models.EventBookingDeclined, booking)
	return booking, nil
}

// CancelBooking cancels a booking before capture. A held escrow is voided
// synchronously first so no hold is left orphaned; captured funds require a
// dispute instead.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperror.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.CustomerID != userID && booking.VendorID != userID {
		return nil, apperror.ErrForbidden
	}
	if !booking.CanTransitionTo(models.BookingStatusCancelled) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot cancel booking in status %q", booking.Status))
	}

	if err := s.escrow.Void(ctx, booking.ID); err != nil {
		return nil, err
	}

	if err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, models.BookingStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "booking status changed concurrently")
		}
		return nil, err
	}
	booking.Status = models.BookingStatusCancelled

	s.sink.Notify(booking.CustomerID, models.EventBookingCancelled, booking)
	s.sink.Notify(booking.VendorID, models.EventBookingCancelled, booking)
	return booking, nil
}

// CompleteBooking marks service delivery done and captures the escrow.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID, vendorID uuid.UUID) (*models.Booking, error) {
	booking, err := s.getOwned(ctx, bookingID, vendorID, true)
	if err != nil {
		return nil, err
	}
	if !booking.CanTransitionTo(models.BookingStatusCompleted) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot complete booking in status %q", booking.Status))
	}

	if err := s.bookings.UpdateStatus(ctx, booking.ID, booking.Status, models.BookingStatusCompleted); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "booking status changed concurrently")
		}
		return nil, err
	}
	booking.Status = models.BookingStatusCompleted

	if t, err := s.escrow.GetByBooking(ctx, booking.ID); err == nil && t.Status == models.EscrowStatusHeld {
		if _, err := s.escrow.Capture(ctx, t.ID); err != nil {
			// Completion stands; the capture is retried by the caller or a
			// later webhook replay.
			return booking, err
		}
	}

	return booking, nil
}

// GetBooking returns a booking visible to one of its parties.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperror.ErrBookingNotFound
		}
		return nil, err
	}
	if booking.CustomerID != userID && booking.VendorID != userID {
		return nil, apperror.ErrForbidden
	}
	return booking, nil
}

// ListBookings returns the user's bookings on either side of the market.
func (s *BookingService) ListBookings(ctx context.Context, userID uuid.UUID, asVendor bool, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if asVendor {
		return s.bookings.ListByVendor(ctx, userID, limit, offset)
	}
	return s.bookings.ListByCustomer(ctx, userID, limit, offset)
}

func (s *BookingService) getOwned(ctx context.Context, bookingID, userID uuid.UUID, vendorSide bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperror.ErrBookingNotFound
		}
		return nil, err
	}
	owner := booking.CustomerID
	if vendorSide {
		owner = booking.VendorID
	}
	if owner != userID {
		return nil, apperror.ErrForbidden
	}
	return booking, nil
}
