package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/repository/common"
)

var (
	ErrEscrowNotFound   = errors.New("escrow transaction not found")
	ErrEscrowConflict   = errors.New("active escrow already exists for booking")
	ErrEscrowTransition = errors.New("escrow status changed concurrently")
)

type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create inserts a held transaction. A partial unique index on booking_id
// for non-terminal statuses backs the one-active-escrow-per-booking
// invariant; a violation surfaces as ErrEscrowConflict.
func (r *EscrowRepository) Create(ctx context.Context, t *models.EscrowTransaction) error {
	query := `
		INSERT INTO escrow_transactions (booking_id, customer_id, vendor_id,
			amount, refunded_amount, currency, status, payment_ref)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		t.BookingID, t.CustomerID, t.VendorID,
		t.Amount, t.Currency, t.Status, t.PaymentRef,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEscrowConflict
		}
		return fmt.Errorf("escrow repository: create %w", err)
	}
	return nil
}

// GetByID returns a transaction by primary key.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return common.GetByID[models.EscrowTransaction](ctx, r.db, "escrow_transactions", id, ErrEscrowNotFound)
}

// GetActiveByBookingID returns the single non-terminal transaction of a
// booking, if any.
func (r *EscrowRepository) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	var t models.EscrowTransaction
	err := r.db.GetContext(ctx, &t, `
		SELECT * FROM escrow_transactions
		WHERE booking_id = $1 AND status NOT IN ('refunded', 'released')
	`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get active by booking %w", err)
	}
	return &t, nil
}

// Transition performs a compare-and-swap on the transaction status. The
// expected current status is part of the WHERE clause, so exactly one caller
// claims any given transition: a concurrent writer that already moved the row
// causes ErrEscrowTransition, and the caller re-reads to discover a no-op.
func (r *EscrowRepository) Transition(ctx context.Context, id uuid.UUID, from, to string, refundedAmount decimal.Decimal) (*models.EscrowTransaction, error) {
	var closedAt *time.Time
	if to == models.EscrowStatusRefunded || to == models.EscrowStatusReleased {
		now := time.Now()
		closedAt = &now
	}

	var t models.EscrowTransaction
	err := r.db.GetContext(ctx, &t, `
		UPDATE escrow_transactions
		SET status = $3, refunded_amount = $4,
		    closed_at = COALESCE($5, closed_at),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING *
	`, id, from, to, refundedAmount, closedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowTransition
		}
		return nil, fmt.Errorf("escrow repository: transition %w", err)
	}
	return &t, nil
}

// SetCaptureRef stores the gateway receipt of a capture that ran after the
// status claim.
func (r *EscrowRepository) SetCaptureRef(ctx context.Context, id uuid.UUID, ref string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE escrow_transactions SET capture_ref = $2, updated_at = NOW() WHERE id = $1
	`, id, ref)
	if err != nil {
		return fmt.Errorf("escrow repository: set capture ref %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return ErrEscrowNotFound
	}
	return nil
}
