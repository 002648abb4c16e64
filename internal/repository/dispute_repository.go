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

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/repository/common"
)

var (
	ErrDisputeNotFound = errors.New("dispute not found")
	ErrDisputeExists   = errors.New("active dispute already exists for booking")
	ErrPhaseChanged    = errors.New("dispute phase changed concurrently")
)

type DisputeRepository struct {
	db *sqlx.DB
}

func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create inserts the dispute together with its initial phase row. A partial
// unique index on booking_id for active statuses backs the
// one-active-dispute-per-booking invariant.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute, p *models.DisputePhase) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO disputes (booking_id, escrow_tx_id, customer_id, vendor_id,
				raised_by_role, reason, description, status, escrow_amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at
		`
		err := tx.QueryRowxContext(ctx, query,
			d.BookingID, d.EscrowTxID, d.CustomerID, d.VendorID,
			d.RaisedByRole, d.Reason, d.Description, d.Status, d.EscrowAmount,
		).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrDisputeExists
			}
			return fmt.Errorf("dispute repository: create %w", err)
		}

		p.DisputeID = d.ID
		phaseQuery := `
			INSERT INTO dispute_phases (dispute_id, current_phase, phase1_started_at, phase1_deadline)
			VALUES ($1, $2, $3, $4)
			RETURNING id, updated_at
		`
		if err := tx.QueryRowxContext(ctx, phaseQuery,
			p.DisputeID, p.CurrentPhase, p.Phase1StartedAt, p.Phase1Deadline,
		).Scan(&p.ID, &p.UpdatedAt); err != nil {
			return fmt.Errorf("dispute repository: create phase %w", err)
		}
		return nil
	})
}

// GetByID returns a dispute by primary key.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// GetActiveByBookingID returns the active dispute of a booking, if any.
func (r *DisputeRepository) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes
		WHERE booking_id = $1 AND status IN ('open', 'under_review')
	`, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by booking %w", err)
	}
	return &d, nil
}

// GetActiveByEscrowTxID returns the active dispute referencing an escrow
// transaction, if any. Used to refuse release while a dispute is open.
func (r *DisputeRepository) GetActiveByEscrowTxID(ctx context.Context, escrowTxID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes
		WHERE escrow_tx_id = $1 AND status IN ('open', 'under_review')
	`, escrowTxID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("dispute repository: get active by escrow %w", err)
	}
	return &d, nil
}

// GetPhase returns the phase row of a dispute.
func (r *DisputeRepository) GetPhase(ctx context.Context, disputeID uuid.UUID) (*models.DisputePhase, error) {
	return common.GetByField[models.DisputePhase](ctx, r.db, "dispute_phases", "dispute_id", disputeID, ErrDisputeNotFound)
}

// AdvancePhase applies a phase change with a compare on the current phase.
// Two handlers racing the same advance serialize here: the loser gets
// ErrPhaseChanged and must re-read, so a dispute can never double-advance
// from one observed state.
func (r *DisputeRepository) AdvancePhase(ctx context.Context, p *models.DisputePhase, fromPhase string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispute_phases
		SET current_phase = $3,
		    phase2_started_at = $4, phase2_deadline = $5,
		    phase3_started_at = $6, phase3_deadline = $7,
		    updated_at = NOW()
		WHERE dispute_id = $1 AND current_phase = $2
	`, p.DisputeID, fromPhase, p.CurrentPhase,
		p.Phase2StartedAt, p.Phase2Deadline,
		p.Phase3StartedAt, p.Phase3Deadline)
	if err != nil {
		return fmt.Errorf("dispute repository: advance phase %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPhaseChanged
	}
	return nil
}

// Resolve closes the dispute with an outcome and stamps the phase row, both
// in one transaction. The compare on active statuses makes resolution apply
// exactly once.
func (r *DisputeRepository) Resolve(ctx context.Context, disputeID uuid.UUID, outcome, resolution, fromPhase string) (*models.Dispute, error) {
	var d models.Dispute
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now()
		err := tx.GetContext(ctx, &d, `
			UPDATE disputes
			SET status = $2, resolution = $3, resolved_at = $4
			WHERE id = $1 AND status IN ('open', 'under_review')
			RETURNING *
		`, disputeID, outcome, resolution, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPhaseChanged
			}
			return fmt.Errorf("dispute repository: resolve %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE dispute_phases SET current_phase = 'resolved', updated_at = NOW()
			WHERE dispute_id = $1 AND current_phase = $2
		`, disputeID, fromPhase)
		if err != nil {
			return fmt.Errorf("dispute repository: resolve phase %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrPhaseChanged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// MarkUnderReview flips an open dispute to under_review once mediation or
// decision work starts. Already under_review is a no-op.
func (r *DisputeRepository) MarkUnderReview(ctx context.Context, disputeID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE disputes SET status = 'under_review'
		WHERE id = $1 AND status = 'open'
	`, disputeID)
	return err
}

// CreateSettlementOffer inserts an offer and supersedes any pending offer on
// the same dispute, both in one transaction. Only the newest offer stays
// accept-able.
func (r *DisputeRepository) CreateSettlementOffer(ctx context.Context, o *models.SettlementOffer) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE dispute_settlements SET status = 'superseded'
			WHERE dispute_id = $1 AND status = 'pending'
		`, o.DisputeID); err != nil {
			return fmt.Errorf("dispute repository: supersede offers %w", err)
		}
		query := `
			INSERT INTO dispute_settlements (dispute_id, proposed_by, customer_amount, message, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			o.DisputeID, o.ProposedBy, o.CustomerAmount, o.Message, o.Status,
		).Scan(&o.ID, &o.CreatedAt); err != nil {
			return fmt.Errorf("dispute repository: create offer %w", err)
		}
		return nil
	})
}

// GetSettlementOffer returns an offer by primary key.
func (r *DisputeRepository) GetSettlementOffer(ctx context.Context, id uuid.UUID) (*models.SettlementOffer, error) {
	return common.GetByID[models.SettlementOffer](ctx, r.db, "dispute_settlements", id, ErrDisputeNotFound)
}

// UpdateSettlementStatus moves an offer between statuses with a compare on
// the current one, so two parties racing an accept cannot both win.
func (r *DisputeRepository) UpdateSettlementStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE dispute_settlements SET status = $3
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("dispute repository: update offer status %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPhaseChanged
	}
	return nil
}

// ListSettlementOffers returns a dispute's offers, newest first.
func (r *DisputeRepository) ListSettlementOffers(ctx context.Context, disputeID uuid.UUID) ([]models.SettlementOffer, error) {
	var offers []models.SettlementOffer
	err := r.db.SelectContext(ctx, &offers, `
		SELECT * FROM dispute_settlements WHERE dispute_id = $1 ORDER BY created_at DESC
	`, disputeID)
	return offers, err
}

// ListByUser returns disputes where the user is a party, newest first.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes
		WHERE customer_id = $1 OR vendor_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return disputes, err
}

// AddEvidence attaches an uploaded file reference to a dispute.
func (r *DisputeRepository) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (dispute_id, uploader_id, file_path, file_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query,
		e.DisputeID, e.UploaderID, e.FilePath, e.FileType, e.SizeBytes,
	).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("dispute repository: add evidence %w", err)
	}
	return nil
}

// ListEvidence returns the evidence of a dispute, oldest first.
func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	var evidence []models.DisputeEvidence
	err := r.db.SelectContext(ctx, &evidence, `
		SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at
	`, disputeID)
	return evidence, err
}
