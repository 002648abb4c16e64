package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
	"github.com/helvetio/marketplace-backend/internal/validation"
)

// ListingStore is the service repository surface the listing flow needs.
type ListingStore interface {
	Create(ctx context.Context, svc *models.Service) error
	Update(ctx context.Context, svc *models.Service) error
	Archive(ctx context.Context, serviceID, vendorID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Service, error)
	CreateBlock(ctx context.Context, block *models.AvailabilityBlock) error
	DeleteBlock(ctx context.Context, blockID, serviceID uuid.UUID) error
}

// ListingService manages vendor service listings and their blackout windows.
type ListingService struct {
	repo         ListingStore
	availability *AvailabilityService
}

func NewListingService(repo ListingStore, availability *AvailabilityService) *ListingService {
	return &ListingService{repo: repo, availability: availability}
}

// CreateListing validates and stores a new listing for a vendor.
func (s *ListingService) CreateListing(ctx context.Context, vendorID uuid.UUID, svc *models.Service) (*models.Service, error) {
	svc.VendorID = vendorID
	if err := s.validate(svc); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// UpdateListing rewrites a listing the vendor owns. Archived listings are
// immutable.
func (s *ListingService) UpdateListing(ctx context.Context, vendorID uuid.UUID, svc *models.Service) (*models.Service, error) {
	existing, err := s.getOwned(ctx, svc.ID, vendorID)
	if err != nil {
		return nil, err
	}
	svc.VendorID = existing.VendorID
	if err := s.validate(svc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, svc); err != nil {
		if errors.Is(err, repository.ErrServiceArchived) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "archived listings cannot be changed")
		}
		return nil, err
	}
	return svc, nil
}

// ArchiveListing takes a listing off the market. Existing bookings keep
// their snapshotted prices and run to completion.
func (s *ListingService) ArchiveListing(ctx context.Context, serviceID, vendorID uuid.UUID) error {
	if _, err := s.getOwned(ctx, serviceID, vendorID); err != nil {
		return err
	}
	if err := s.repo.Archive(ctx, serviceID, vendorID); err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return apperror.ErrServiceNotFound
		}
		return err
	}
	return nil
}

// GetListing returns a listing with its price list.
func (s *ListingService) GetListing(ctx context.Context, serviceID uuid.UUID) (*models.Service, error) {
	svc, err := s.repo.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrServiceNotFound) {
			return nil, apperror.ErrServiceNotFound
		}
		return nil, err
	}
	return svc, nil
}

// ListVendorListings returns all of a vendor's listings, archived included.
func (s *ListingService) ListVendorListings(ctx context.Context, vendorID uuid.UUID) ([]models.Service, error) {
	return s.repo.ListByVendor(ctx, vendorID)
}

// CheckAvailability answers whether a slot (or an order, for CAPACITY_BOUND
// listings) can be booked right now.
func (s *ListingService) CheckAvailability(ctx context.Context, serviceID uuid.UUID, slot *Slot) (*AvailabilityResult, error) {
	svc, err := s.GetListing(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.availability.Check(ctx, svc, slot)
}

// AddBlock records a blackout window on a TIME_BOUND listing.
func (s *ListingService) AddBlock(ctx context.Context, vendorID uuid.UUID, block *models.AvailabilityBlock) (*models.AvailabilityBlock, error) {
	svc, err := s.getOwned(ctx, block.ServiceID, vendorID)
	if err != nil {
		return nil, err
	}
	if svc.SchedulingType != models.SchedulingTimeBound {
		return nil, apperror.New(apperror.ErrCodeValidation, "blocks apply only to TIME_BOUND listings")
	}
	if !block.EndsAt.After(block.StartsAt) {
		return nil, apperror.New(apperror.ErrCodeValidation, "block end must be after its start")
	}
	if err := s.repo.CreateBlock(ctx, block); err != nil {
		return nil, err
	}
	return block, nil
}

// RemoveBlock deletes a blackout window.
func (s *ListingService) RemoveBlock(ctx context.Context, vendorID, serviceID, blockID uuid.UUID) error {
	if _, err := s.getOwned(ctx, serviceID, vendorID); err != nil {
		return err
	}
	return s.repo.DeleteBlock(ctx, blockID, serviceID)
}

func (s *ListingService) validate(svc *models.Service) error {
	if err := validation.ValidateListingTitle(svc.Title); err != nil {
		return apperror.New(apperror.ErrCodeValidation, err.Error())
	}
	if svc.Description != nil {
		if err := validation.ValidateListingDescription(*svc.Description); err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
	}

	switch svc.SchedulingType {
	case models.SchedulingTimeBound:
		if svc.ConcurrentCapacity < 1 {
			return apperror.New(apperror.ErrCodeValidation, "concurrent capacity must be at least 1")
		}
	case models.SchedulingCapacityBound:
		if svc.MaxConcurrentOrders < 1 {
			return apperror.New(apperror.ErrCodeValidation, "max concurrent orders must be at least 1")
		}
	default:
		return apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("unknown scheduling type %q", svc.SchedulingType))
	}
	if svc.MinLeadTimeHours < 0 {
		return apperror.New(apperror.ErrCodeValidation, "minimum lead time cannot be negative")
	}

	if len(svc.PriceList) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "a listing needs at least one price list item")
	}
	for _, item := range svc.PriceList {
		if err := validation.ValidateNonEmpty("price list item description", item.Description); err != nil {
			return apperror.New(apperror.ErrCodeValidation, err.Error())
		}
		switch item.PricingMode {
		case models.PricingFixed, models.PricingHourly:
			if item.Price == nil {
				return apperror.New(apperror.ErrCodeValidation,
					fmt.Sprintf("item %q needs a price", item.Description))
			}
			if err := validation.ValidatePrice(*item.Price); err != nil {
				return apperror.New(apperror.ErrCodeValidation, err.Error())
			}
		case models.PricingInquire:
		default:
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("unknown pricing mode %q", item.PricingMode))
		}
		switch item.BillingType {
		case models.BillingOnce, models.BillingPerDuration:
		default:
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("unknown billing type %q", item.BillingType))
		}
	}
	return nil
}

func (s *ListingService) getOwned(ctx context.Context, serviceID, vendorID uuid.UUID) (*models.Service, error) {
	svc, err := s.GetListing(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.VendorID != vendorID {
		return nil, apperror.ErrForbidden
	}
	return svc, nil
}
