package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/repository/common"
)

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrServiceArchived = errors.New("service is archived")
)

type ServiceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// Create inserts a service listing together with its price list.
func (r *ServiceRepository) Create(ctx context.Context, svc *models.Service) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO services (vendor_id, title, description, scheduling_type,
				concurrent_capacity, max_concurrent_orders, instant_booking_enabled,
				turnaround_hours, min_lead_time_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, is_archived, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			svc.VendorID, svc.Title, svc.Description, svc.SchedulingType,
			svc.ConcurrentCapacity, svc.MaxConcurrentOrders, svc.InstantBookingEnabled,
			svc.TurnaroundHours, svc.MinLeadTimeHours,
		).Scan(&svc.ID, &svc.IsArchived, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return fmt.Errorf("service repository: create %w", err)
		}

		return insertPriceList(ctx, tx, svc.ID, svc.PriceList)
	})
}

// insertPriceList batch-inserts the price list rows for a service.
func insertPriceList(ctx context.Context, tx *sqlx.Tx, serviceID uuid.UUID, items []models.PriceListItem) error {
	if len(items) == 0 {
		return nil
	}
	bi := common.NewBatchInserter(tx, `
		INSERT INTO price_list_items (id, service_id, position, description, price,
			unit, billing_type, pricing_mode, estimated_minutes)`, 9, 100)
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ServiceID = serviceID
		items[i].Position = i
		if err := bi.Add(ctx,
			items[i].ID, serviceID, i, items[i].Description, items[i].Price,
			items[i].Unit, items[i].BillingType, items[i].PricingMode, items[i].EstimatedMinutes,
		); err != nil {
			return err
		}
	}
	return bi.Flush(ctx)
}

// Update rewrites a listing and its price list. Archived listings are
// immutable; the WHERE clause enforces it.
func (r *ServiceRepository) Update(ctx context.Context, svc *models.Service) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE services SET title = $2, description = $3,
				concurrent_capacity = $4, max_concurrent_orders = $5,
				instant_booking_enabled = $6, turnaround_hours = $7,
				min_lead_time_hours = $8, updated_at = NOW()
			WHERE id = $1 AND is_archived = FALSE
		`, svc.ID, svc.Title, svc.Description,
			svc.ConcurrentCapacity, svc.MaxConcurrentOrders,
			svc.InstantBookingEnabled, svc.TurnaroundHours, svc.MinLeadTimeHours)
		if err != nil {
			return fmt.Errorf("service repository: update %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrServiceArchived
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM price_list_items WHERE service_id = $1`, svc.ID); err != nil {
			return fmt.Errorf("service repository: clear price list %w", err)
		}
		return insertPriceList(ctx, tx, svc.ID, svc.PriceList)
	})
}

// Archive makes a listing immutable and unbookable.
func (r *ServiceRepository) Archive(ctx context.Context, serviceID, vendorID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE services SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1 AND vendor_id = $2
	`, serviceID, vendorID)
	if err != nil {
		return fmt.Errorf("service repository: archive %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServiceNotFound
	}
	return nil
}

// GetByID loads a service with its price list.
func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	svc, err := common.GetByID[models.Service](ctx, r.db, "services", id, ErrServiceNotFound)
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &svc.PriceList, `
		SELECT * FROM price_list_items WHERE service_id = $1 ORDER BY position
	`, id); err != nil {
		return nil, fmt.Errorf("service repository: load price list %w", err)
	}
	return svc, nil
}

// ListByVendor returns all listings of one vendor.
func (r *ServiceRepository) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]models.Service, error) {
	var services []models.Service
	err := r.db.SelectContext(ctx, &services, `
		SELECT * FROM services WHERE vendor_id = $1 ORDER BY created_at DESC
	`, vendorID)
	return services, err
}

// GetPriceListItems returns the selected price list rows in list order.
func (r *ServiceRepository) GetPriceListItems(ctx context.Context, serviceID uuid.UUID, itemIDs []uuid.UUID) ([]models.PriceListItem, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT * FROM price_list_items WHERE service_id = ? AND id IN (?) ORDER BY position
	`, serviceID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("service repository: build price list query %w", err)
	}
	query = r.db.Rebind(query)

	var items []models.PriceListItem
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("service repository: get price list items %w", err)
	}
	return items, nil
}

// CreateBlock inserts a vendor blackout window.
func (r *ServiceRepository) CreateBlock(ctx context.Context, block *models.AvailabilityBlock) error {
	query := `
		INSERT INTO availability_blocks (service_id, starts_at, ends_at, reason)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		block.ServiceID, block.StartsAt, block.EndsAt, block.Reason,
	).Scan(&block.ID, &block.CreatedAt); err != nil {
		return fmt.Errorf("service repository: create block %w", err)
	}
	return nil
}

// DeleteBlock removes a blackout window.
func (r *ServiceRepository) DeleteBlock(ctx context.Context, blockID, serviceID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM availability_blocks WHERE id = $1 AND service_id = $2`, blockID, serviceID)
	if err != nil {
		return fmt.Errorf("service repository: delete block %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BlocksOverlapping returns blackout windows intersecting [start, end).
func (r *ServiceRepository) BlocksOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) ([]models.AvailabilityBlock, error) {
	var blocks []models.AvailabilityBlock
	err := r.db.SelectContext(ctx, &blocks, `
		SELECT * FROM availability_blocks
		WHERE service_id = $1 AND starts_at < $3 AND $2 < ends_at
	`, serviceID, start, end)
	return blocks, err
}
