package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/logger"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
)

// EscrowStore is the slice of the escrow repository the ledger needs.
type EscrowStore interface {
	Create(ctx context.Context, t *models.EscrowTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error)
	GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error)
	Transition(ctx context.Context, id uuid.UUID, from, to string, refundedAmount decimal.Decimal) (*models.EscrowTransaction, error)
	SetCaptureRef(ctx context.Context, id uuid.UUID, ref string) error
}

// ActiveDisputeFinder answers whether an open dispute references a
// transaction. Release is refused while one exists.
type ActiveDisputeFinder interface {
	GetActiveByEscrowTxID(ctx context.Context, escrowTxID uuid.UUID) (*models.Dispute, error)
}

// EscrowService owns the lifecycle of funds held against bookings.
type EscrowService struct {
	repo     EscrowStore
	disputes ActiveDisputeFinder
	payments PaymentCapability
	sink     NotificationSink
}

func NewEscrowService(repo EscrowStore, disputes ActiveDisputeFinder, payments PaymentCapability, sink NotificationSink) *EscrowService {
	return &EscrowService{repo: repo, disputes: disputes, payments: payments, sink: sink}
}

// Hold places the booking total into escrow. Idempotent per booking: a
// repeated call finds the existing active transaction and returns it instead
// of authorizing a second hold.
func (s *EscrowService) Hold(ctx context.Context, booking *models.Booking) (*models.EscrowTransaction, error) {
	if booking.TotalPrice.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.ErrCodeValidation, "escrow amount must be positive")
	}

	existing, err := s.repo.GetActiveByBookingID(ctx, booking.ID)
	if err == nil {
		if !existing.Amount.Equal(booking.TotalPrice) {
			return nil, apperror.New(apperror.ErrCodeConflict,
				"an active escrow with a different amount already exists for this booking")
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, err
	}

	ref, err := s.payments.AuthorizeHold(ctx, booking.TotalPrice, booking.Currency, booking.CustomerID)
	if err != nil {
		return nil, err
	}

	t := &models.EscrowTransaction{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		VendorID:   booking.VendorID,
		Amount:     booking.TotalPrice,
		Currency:   booking.Currency,
		Status:     models.EscrowStatusHeld,
		PaymentRef: ref,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, repository.ErrEscrowConflict) {
			// Lost a race against a parallel hold; ours is surplus, the
			// gateway authorization is voided and the winner returned.
			_ = s.payments.Void(ctx, ref)
			return s.repo.GetActiveByBookingID(ctx, booking.ID)
		}
		return nil, err
	}

	s.sink.Notify(booking.CustomerID, models.EventEscrowHeld, t)
	s.sink.Notify(booking.VendorID, models.EventEscrowHeld, t)
	return t, nil
}

// Capture settles a held transaction. Calling it on an already captured
// transaction is a no-op returning the current row; any other status is an
// invalid-state error.
//
// The row is claimed before the gateway is called: only the claim winner
// talks to the gateway, so two handlers processing the same event produce
// exactly one gateway capture. A failed gateway call surrenders the claim so
// a retry can take it again.
func (s *EscrowService) Capture(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.repo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.EscrowStatusCaptured {
		return t, nil
	}
	if t.Status != models.EscrowStatusHeld {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot capture escrow in status %q", t.Status))
	}

	updated, err := s.repo.Transition(ctx, t.ID, models.EscrowStatusHeld, models.EscrowStatusCaptured, t.RefundedAmount)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowTransition) {
			return s.reconcile(ctx, t.ID, models.EscrowStatusCaptured)
		}
		return nil, err
	}

	receipt, err := s.payments.Capture(ctx, t.PaymentRef)
	if err != nil {
		s.surrenderClaim(ctx, t, models.EscrowStatusCaptured)
		return nil, err
	}
	s.storeCaptureRef(ctx, updated, receipt)

	s.sink.Notify(updated.CustomerID, models.EventEscrowCaptured, updated)
	s.sink.Notify(updated.VendorID, models.EventEscrowCaptured, updated)
	return updated, nil
}

// Refund returns amount to the customer. The full amount closes the
// transaction as refunded; a smaller amount moves it to partially_refunded
// with the residual still owed to the vendor.
func (s *EscrowService) Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.EscrowTransaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.ErrCodeValidation, "refund amount must be positive")
	}

	t, err := s.repo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(t.Amount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "refund amount exceeds escrow amount")
	}
	if t.Status != models.EscrowStatusHeld && t.Status != models.EscrowStatusCaptured {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot refund escrow in status %q", t.Status))
	}

	target := models.EscrowStatusPartiallyRefunded
	if amount.Equal(t.Amount) {
		target = models.EscrowStatusRefunded
	}

	// Claim the transition first. A lost claim means a concurrent caller owns
	// this refund and already drove (or is driving) the gateway call; ours
	// reconciles without touching the gateway a second time.
	updated, err := s.repo.Transition(ctx, t.ID, t.Status, target, amount)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowTransition) {
			return s.reconcile(ctx, t.ID, target)
		}
		return nil, err
	}

	if _, err := s.payments.Refund(ctx, t.PaymentRef, amount); err != nil {
		s.surrenderClaim(ctx, t, target)
		return nil, err
	}

	s.sink.Notify(updated.CustomerID, models.EventEscrowRefunded, updated)
	s.sink.Notify(updated.VendorID, models.EventEscrowRefunded, updated)
	return updated, nil
}

// Release closes the escrow in the vendor's favor. Refused while an open
// dispute references the transaction. A hold that was never captured is
// captured on the way out, partial refunds included, so the vendor actually
// collects the remainder.
func (s *EscrowService) Release(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.repo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.EscrowStatusReleased {
		return t, nil
	}
	if !t.CanTransitionTo(models.EscrowStatusReleased) {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot release escrow in status %q", t.Status))
	}

	if _, findErr := s.disputes.GetActiveByEscrowTxID(ctx, t.ID); findErr == nil {
		return nil, apperror.New(apperror.ErrCodeConflict, "an open dispute references this escrow")
	} else if !errors.Is(findErr, repository.ErrDisputeNotFound) {
		return nil, findErr
	}

	updated, err := s.repo.Transition(ctx, t.ID, t.Status, models.EscrowStatusReleased, t.RefundedAmount)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowTransition) {
			return s.reconcile(ctx, t.ID, models.EscrowStatusReleased)
		}
		return nil, err
	}

	if t.CaptureRef == nil {
		receipt, err := s.payments.Capture(ctx, t.PaymentRef)
		if err != nil {
			s.surrenderClaim(ctx, t, models.EscrowStatusReleased)
			return nil, err
		}
		s.storeCaptureRef(ctx, updated, receipt)
	}

	s.sink.Notify(updated.CustomerID, models.EventEscrowReleased, updated)
	s.sink.Notify(updated.VendorID, models.EventEscrowReleased, updated)
	return updated, nil
}

// Void cancels the hold backing a booking, for the cancellation path. A
// booking without an active escrow is a no-op; captured funds cannot be
// voided and must go through refund instead.
func (s *EscrowService) Void(ctx context.Context, bookingID uuid.UUID) error {
	t, err := s.repo.GetActiveByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil
		}
		return err
	}
	if t.Status != models.EscrowStatusHeld {
		return apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot void escrow in status %q", t.Status))
	}

	if _, err := s.repo.Transition(ctx, t.ID, models.EscrowStatusHeld, models.EscrowStatusRefunded, t.Amount); err != nil {
		if errors.Is(err, repository.ErrEscrowTransition) {
			_, rerr := s.reconcile(ctx, t.ID, models.EscrowStatusRefunded)
			return rerr
		}
		return err
	}

	if err := s.payments.Void(ctx, t.PaymentRef); err != nil {
		s.surrenderClaim(ctx, t, models.EscrowStatusRefunded)
		return err
	}

	s.sink.Notify(t.CustomerID, models.EventEscrowRefunded, t)
	return nil
}

// Get returns an escrow transaction by ID.
func (s *EscrowService) Get(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.repo.GetByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return t, nil
}

// GetByBooking returns the active escrow of a booking.
func (s *EscrowService) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	t, err := s.repo.GetActiveByBookingID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	return t, nil
}

// surrenderClaim undoes a claimed transition after a failed gateway call so
// a retry can claim it again. If the rollback loses its own race the row has
// moved on; that is logged and left to the next reader.
func (s *EscrowService) surrenderClaim(ctx context.Context, t *models.EscrowTransaction, claimed string) {
	if _, err := s.repo.Transition(ctx, t.ID, claimed, t.Status, t.RefundedAmount); err != nil {
		logger.Log.WithError(err).WithField("escrow_tx_id", t.ID).
			Error("failed to surrender escrow claim after gateway failure")
	}
}

// storeCaptureRef records the gateway receipt. The money already moved; a
// storage failure here is bookkeeping, not a reason to fail the operation.
func (s *EscrowService) storeCaptureRef(ctx context.Context, t *models.EscrowTransaction, receipt string) {
	if err := s.repo.SetCaptureRef(ctx, t.ID, receipt); err != nil {
		logger.Log.WithError(err).WithField("escrow_tx_id", t.ID).
			Error("captured at the gateway but failed to store the receipt")
	}
	t.CaptureRef = &receipt
}

// reconcile re-reads after a lost compare-and-swap. A concurrent writer that
// already applied the same transition makes the retry a no-op success;
// anything else is a real invalid state.
func (s *EscrowService) reconcile(ctx context.Context, txID uuid.UUID, wanted string) (*models.EscrowTransaction, error) {
	t, err := s.repo.GetByID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Status == wanted {
		return t, nil
	}
	return nil, apperror.New(apperror.ErrCodeInvalidState,
		fmt.Sprintf("escrow moved to %q concurrently", t.Status))
}
