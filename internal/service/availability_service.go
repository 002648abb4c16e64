package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
)

// Slot is a half-open time window [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityResult reports whether capacity exists for a request.
// Capacity exhaustion is a negative result with a reason, not an error.
type AvailabilityResult struct {
	Available       bool   `json:"available"`
	Reason          string `json:"reason,omitempty"`
	CurrentBookings int    `json:"current_bookings"`
	MaxCapacity     int    `json:"max_capacity"`
	RemainingSlots  int    `json:"remaining_slots"`
}

// AvailabilityCounter is the slice of the booking store the checker needs.
type AvailabilityCounter interface {
	CountOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) (int, error)
	CountOpen(ctx context.Context, serviceID uuid.UUID) (int, error)
}

// BlockFinder returns vendor blackout windows intersecting a slot.
type BlockFinder interface {
	BlocksOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) ([]models.AvailabilityBlock, error)
}

// AvailabilityService decides whether a service can take another booking.
type AvailabilityService struct {
	bookings AvailabilityCounter
	blocks   BlockFinder
	clock    Clock
}

// NewAvailabilityService creates the checker. A nil clock means time.Now.
func NewAvailabilityService(bookings AvailabilityCounter, blocks BlockFinder, clock Clock) *AvailabilityService {
	if clock == nil {
		clock = time.Now
	}
	return &AvailabilityService{bookings: bookings, blocks: blocks, clock: clock}
}

// Check evaluates availability for a service and an optional slot. For
// TIME_BOUND services a slot is mandatory and must be a valid half-open
// window; for CAPACITY_BOUND services the slot is ignored.
func (s *AvailabilityService) Check(ctx context.Context, svc *models.Service, slot *Slot) (*AvailabilityResult, error) {
	if svc == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "service is required")
	}
	if svc.IsArchived {
		return &AvailabilityResult{Available: false, Reason: "service is archived"}, nil
	}

	switch svc.SchedulingType {
	case models.SchedulingTimeBound:
		return s.checkTimeBound(ctx, svc, slot)
	case models.SchedulingCapacityBound:
		return s.checkCapacityBound(ctx, svc)
	default:
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("unknown scheduling type %q", svc.SchedulingType))
	}
}

func (s *AvailabilityService) checkTimeBound(ctx context.Context, svc *models.Service, slot *Slot) (*AvailabilityResult, error) {
	if slot == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "a time slot is required for this service")
	}
	if !slot.End.After(slot.Start) {
		return nil, apperror.New(apperror.ErrCodeValidation, "slot end must be after slot start")
	}

	if svc.MinLeadTimeHours > 0 {
		lead := time.Duration(svc.MinLeadTimeHours) * time.Hour
		if slot.Start.Before(s.clock().Add(lead)) {
			return &AvailabilityResult{
				Available:   false,
				Reason:      fmt.Sprintf("bookings require at least %d hours lead time", svc.MinLeadTimeHours),
				MaxCapacity: svc.ConcurrentCapacity,
			}, nil
		}
	}

	count, err := s.bookings.CountOverlapping(ctx, svc.ID, slot.Start, slot.End)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "count overlapping bookings")
	}

	result := &AvailabilityResult{
		CurrentBookings: count,
		MaxCapacity:     svc.ConcurrentCapacity,
		RemainingSlots:  svc.ConcurrentCapacity - count,
	}
	if result.RemainingSlots < 0 {
		result.RemainingSlots = 0
	}

	if count >= svc.ConcurrentCapacity {
		result.Reason = "no capacity left in the requested window"
		return result, nil
	}

	blocks, err := s.blocks.BlocksOverlapping(ctx, svc.ID, slot.Start, slot.End)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "load availability blocks")
	}
	if len(blocks) > 0 {
		result.Reason = "the requested window is blocked by the vendor"
		return result, nil
	}

	result.Available = true
	return result, nil
}

func (s *AvailabilityService) checkCapacityBound(ctx context.Context, svc *models.Service) (*AvailabilityResult, error) {
	count, err := s.bookings.CountOpen(ctx, svc.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "count open orders")
	}

	result := &AvailabilityResult{
		CurrentBookings: count,
		MaxCapacity:     svc.MaxConcurrentOrders,
		RemainingSlots:  svc.MaxConcurrentOrders - count,
	}
	if result.RemainingSlots < 0 {
		result.RemainingSlots = 0
	}

	if count >= svc.MaxConcurrentOrders {
		result.Reason = "vendor is at maximum concurrent orders"
		return result, nil
	}

	result.Available = true
	return result, nil
}
