package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
)

type mockAvailabilityCounter struct {
	mock.Mock
}

func (m *mockAvailabilityCounter) CountOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) (int, error) {
	args := m.Called(ctx, serviceID, start, end)
	return args.Int(0), args.Error(1)
}

func (m *mockAvailabilityCounter) CountOpen(ctx context.Context, serviceID uuid.UUID) (int, error) {
	args := m.Called(ctx, serviceID)
	return args.Int(0), args.Error(1)
}

type mockBlockFinder struct {
	mock.Mock
}

func (m *mockBlockFinder) BlocksOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) ([]models.AvailabilityBlock, error) {
	args := m.Called(ctx, serviceID, start, end)
	return args.Get(0).([]models.AvailabilityBlock), args.Error(1)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func timeBoundService() *models.Service {
	return &models.Service{
		ID:                 uuid.New(),
		SchedulingType:     models.SchedulingTimeBound,
		ConcurrentCapacity: 2,
	}
}

func TestAvailability_TimeBound_Available(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	blocks := new(mockBlockFinder)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAvailabilityService(counter, blocks, fixedClock(now))

	listing := timeBoundService()
	slot := &Slot{Start: now.Add(24 * time.Hour), End: now.Add(26 * time.Hour)}

	counter.On("CountOverlapping", mock.Anything, listing.ID, slot.Start, slot.End).Return(1, nil)
	blocks.On("BlocksOverlapping", mock.Anything, listing.ID, slot.Start, slot.End).Return([]models.AvailabilityBlock{}, nil)

	result, err := svc.Check(context.Background(), listing, slot)
	assert.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, 1, result.CurrentBookings)
	assert.Equal(t, 1, result.RemainingSlots)
}

func TestAvailability_TimeBound_CapacityExhausted(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	blocks := new(mockBlockFinder)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAvailabilityService(counter, blocks, fixedClock(now))

	listing := timeBoundService()
	slot := &Slot{Start: now.Add(24 * time.Hour), End: now.Add(26 * time.Hour)}

	counter.On("CountOverlapping", mock.Anything, listing.ID, slot.Start, slot.End).Return(2, nil)

	result, err := svc.Check(context.Background(), listing, slot)
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Equal(t, 0, result.RemainingSlots)
	assert.Contains(t, result.Reason, "no capacity")
	blocks.AssertNotCalled(t, "BlocksOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailability_TimeBound_BlockedWindow(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	blocks := new(mockBlockFinder)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAvailabilityService(counter, blocks, fixedClock(now))

	listing := timeBoundService()
	slot := &Slot{Start: now.Add(24 * time.Hour), End: now.Add(26 * time.Hour)}

	counter.On("CountOverlapping", mock.Anything, listing.ID, slot.Start, slot.End).Return(0, nil)
	blocks.On("BlocksOverlapping", mock.Anything, listing.ID, slot.Start, slot.End).Return([]models.AvailabilityBlock{
		{ID: uuid.New(), ServiceID: listing.ID, StartsAt: slot.Start, EndsAt: slot.End},
	}, nil)

	result, err := svc.Check(context.Background(), listing, slot)
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Reason, "blocked")
}

func TestAvailability_TimeBound_LeadTimeTooShort(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	blocks := new(mockBlockFinder)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewAvailabilityService(counter, blocks, fixedClock(now))

	listing := timeBoundService()
	listing.MinLeadTimeHours = 48
	slot := &Slot{Start: now.Add(24 * time.Hour), End: now.Add(26 * time.Hour)}

	result, err := svc.Check(context.Background(), listing, slot)
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Reason, "lead time")
	counter.AssertNotCalled(t, "CountOverlapping", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAvailability_TimeBound_SlotRequired(t *testing.T) {
	svc := NewAvailabilityService(new(mockAvailabilityCounter), new(mockBlockFinder), nil)

	_, err := svc.Check(context.Background(), timeBoundService(), nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestAvailability_TimeBound_InvalidWindow(t *testing.T) {
	svc := NewAvailabilityService(new(mockAvailabilityCounter), new(mockBlockFinder), nil)

	now := time.Now()
	_, err := svc.Check(context.Background(), timeBoundService(), &Slot{Start: now, End: now})
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestAvailability_Archived(t *testing.T) {
	svc := NewAvailabilityService(new(mockAvailabilityCounter), new(mockBlockFinder), nil)

	listing := timeBoundService()
	listing.IsArchived = true

	result, err := svc.Check(context.Background(), listing, &Slot{Start: time.Now(), End: time.Now().Add(time.Hour)})
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Reason, "archived")
}

func TestAvailability_CapacityBound(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	svc := NewAvailabilityService(counter, new(mockBlockFinder), nil)

	listing := &models.Service{
		ID:                  uuid.New(),
		SchedulingType:      models.SchedulingCapacityBound,
		MaxConcurrentOrders: 3,
	}

	counter.On("CountOpen", mock.Anything, listing.ID).Return(2, nil)

	result, err := svc.Check(context.Background(), listing, nil)
	assert.NoError(t, err)
	assert.True(t, result.Available)
	assert.Equal(t, 1, result.RemainingSlots)
}

func TestAvailability_CapacityBound_Full(t *testing.T) {
	counter := new(mockAvailabilityCounter)
	svc := NewAvailabilityService(counter, new(mockBlockFinder), nil)

	listing := &models.Service{
		ID:                  uuid.New(),
		SchedulingType:      models.SchedulingCapacityBound,
		MaxConcurrentOrders: 3,
	}

	counter.On("CountOpen", mock.Anything, listing.ID).Return(3, nil)

	result, err := svc.Check(context.Background(), listing, nil)
	assert.NoError(t, err)
	assert.False(t, result.Available)
	assert.Contains(t, result.Reason, "maximum concurrent")
}
