package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/repository/common"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrCapacityExhausted = errors.New("service capacity exhausted")
	ErrSlotBlocked       = errors.New("slot is blocked by the vendor")
	ErrStatusChanged     = errors.New("booking status changed concurrently")
)

type BookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// activeStatuses excludes bookings that no longer occupy capacity.
const activeStatusesSQL = `('pending', 'confirmed')`

// Create inserts a booking after re-checking availability inside one
// transaction. The service row is locked FOR UPDATE so two concurrent
// requests for the same service serialize here: the second one recounts
// after the first committed and cannot slip past capacity.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking, svc *models.Service) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var serviceID uuid.UUID
		if err := tx.GetContext(ctx, &serviceID,
			`SELECT id FROM services WHERE id = $1 AND is_archived = FALSE FOR UPDATE`, svc.ID); err != nil {
			return ErrServiceNotFound
		}

		// Only INSTANT bookings hard-fail on capacity: they confirm without a
		// vendor in the loop, so the count must hold at commit time. REQUEST
		// bookings exist precisely because the slot may be contended and the
		// vendor decides. INQUIRY bookings occupy nothing until quoted.
		switch svc.SchedulingType {
		case models.SchedulingTimeBound:
			if b.Tier != models.TierInquiry && b.StartsAt != nil && b.EndsAt != nil {
				if b.Tier == models.TierInstant {
					count, err := countOverlappingTx(ctx, tx, svc.ID, *b.StartsAt, *b.EndsAt)
					if err != nil {
						return err
					}
					if count >= svc.ConcurrentCapacity {
						return ErrCapacityExhausted
					}
				}

				var blocked int
				if err := tx.GetContext(ctx, &blocked, `
					SELECT COUNT(*) FROM availability_blocks
					WHERE service_id = $1 AND starts_at < $3 AND $2 < ends_at
				`, svc.ID, *b.StartsAt, *b.EndsAt); err != nil {
					return fmt.Errorf("booking repository: count blocks %w", err)
				}
				if blocked > 0 {
					return ErrSlotBlocked
				}
			}
		case models.SchedulingCapacityBound:
			if b.Tier == models.TierInstant {
				count, err := countOpenTx(ctx, tx, svc.ID)
				if err != nil {
					return err
				}
				if count >= svc.MaxConcurrentOrders {
					return ErrCapacityExhausted
				}
			}
		}

		query := `
			INSERT INTO bookings (customer_id, vendor_id, service_id, status, tier,
				starts_at, ends_at, total_price, currency, deposit_percent, deposit_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			b.CustomerID, b.VendorID, b.ServiceID, b.Status, b.Tier,
			b.StartsAt, b.EndsAt, b.TotalPrice, b.Currency, b.DepositPercent, b.DepositAmount,
		).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("booking repository: create %w", err)
		}

		if len(b.Items) == 0 {
			return nil
		}
		bi := common.NewBatchInserter(tx, `
			INSERT INTO booking_items (id, booking_id, price_list_item_id, description,
				pricing_mode, billing_type, unit_price, duration_minutes, amount)`, 9, 100)
		for i := range b.Items {
			b.Items[i].ID = uuid.New()
			b.Items[i].BookingID = b.ID
			if err := bi.Add(ctx,
				b.Items[i].ID, b.ID, b.Items[i].PriceListItemID, b.Items[i].Description,
				b.Items[i].PricingMode, b.Items[i].BillingType, b.Items[i].UnitPrice,
				b.Items[i].DurationMinutes, b.Items[i].Amount,
			); err != nil {
				return err
			}
		}
		return bi.Flush(ctx)
	})
}

func countOverlappingTx(ctx context.Context, tx *sqlx.Tx, serviceID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	// Half-open interval overlap: [s1,e1) and [s2,e2) overlap iff s1 < e2 AND s2 < e1.
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = $1 AND status IN `+activeStatusesSQL+`
		  AND starts_at < $3 AND $2 < ends_at
	`, serviceID, start, end)
	if err != nil {
		return 0, fmt.Errorf("booking repository: count overlapping %w", err)
	}
	return count, nil
}

func countOpenTx(ctx context.Context, tx *sqlx.Tx, serviceID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = $1 AND status IN `+activeStatusesSQL+`
	`, serviceID)
	if err != nil {
		return 0, fmt.Errorf("booking repository: count open %w", err)
	}
	return count, nil
}

// CountOverlapping counts active bookings intersecting [start, end) for a
// TIME_BOUND service. Read-only path used by the availability checker.
func (r *BookingRepository) CountOverlapping(ctx context.Context, serviceID uuid.UUID, start, end time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = $1 AND status IN `+activeStatusesSQL+`
		  AND starts_at < $3 AND $2 < ends_at
	`, serviceID, start, end)
	if err != nil {
		return 0, fmt.Errorf("booking repository: count overlapping %w", err)
	}
	return count, nil
}

// CountOpen counts active orders of a CAPACITY_BOUND service.
func (r *BookingRepository) CountOpen(ctx context.Context, serviceID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM bookings
		WHERE service_id = $1 AND status IN `+activeStatusesSQL+`
	`, serviceID)
	if err != nil {
		return 0, fmt.Errorf("booking repository: count open %w", err)
	}
	return count, nil
}

// GetByID loads a booking with its items.
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	b, err := common.GetByID[models.Booking](ctx, r.db, "bookings", id, ErrBookingNotFound)
	if err != nil {
		return nil, err
	}
	if err := r.db.SelectContext(ctx, &b.Items,
		`SELECT * FROM booking_items WHERE booking_id = $1`, id); err != nil {
		return nil, fmt.Errorf("booking repository: load items %w", err)
	}
	return b, nil
}

// UpdateStatus moves a booking from one status to another. The compare on
// the current status makes the transition a no-op safe retry target: a
// concurrent writer that got there first causes ErrStatusChanged.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bookings SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("booking repository: update status %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStatusChanged
	}
	return nil
}

// ListByCustomer returns a customer's bookings, newest first.
func (r *BookingRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE customer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	return bookings, err
}

// ListByVendor returns a vendor's bookings, newest first.
func (r *BookingRepository) ListByVendor(ctx context.Context, vendorID uuid.UUID, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.SelectContext(ctx, &bookings, `
		SELECT * FROM bookings WHERE vendor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, vendorID, limit, offset)
	return bookings, err
}
