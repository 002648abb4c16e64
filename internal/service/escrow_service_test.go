package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
)

type mockEscrowStore struct {
	mock.Mock
}

func (m *mockEscrowStore) Create(ctx context.Context, t *models.EscrowTransaction) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *mockEscrowStore) GetByID(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockEscrowStore) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockEscrowStore) Transition(ctx context.Context, id uuid.UUID, from, to string, refundedAmount decimal.Decimal) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, id, from, to, refundedAmount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockEscrowStore) SetCaptureRef(ctx context.Context, id uuid.UUID, ref string) error {
	args := m.Called(ctx, id, ref)
	return args.Error(0)
}

type mockDisputeFinder struct {
	mock.Mock
}

func (m *mockDisputeFinder) GetActiveByEscrowTxID(ctx context.Context, escrowTxID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, escrowTxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

type mockPayments struct {
	mock.Mock
}

func (m *mockPayments) AuthorizeHold(ctx context.Context, amount decimal.Decimal, currency string, customerID uuid.UUID) (string, error) {
	args := m.Called(ctx, amount, currency, customerID)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) Capture(ctx context.Context, ref string) (string, error) {
	args := m.Called(ctx, ref)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) Refund(ctx context.Context, ref string, amount decimal.Decimal) (string, error) {
	args := m.Called(ctx, ref, amount)
	return args.String(0), args.Error(1)
}

func (m *mockPayments) Void(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Notify(userID uuid.UUID, eventType string, payload any) {
	m.Called(userID, eventType, payload)
}

func quietSink() *mockSink {
	sink := new(mockSink)
	sink.On("Notify", mock.Anything, mock.Anything, mock.Anything).Maybe()
	return sink
}

func heldTx(amount string) *models.EscrowTransaction {
	return &models.EscrowTransaction{
		ID:         uuid.New(),
		BookingID:  uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		Amount:     decimal.RequireFromString(amount),
		Currency:   "CHF",
		Status:     models.EscrowStatusHeld,
		PaymentRef: "pay_abc",
	}
}

func TestEscrowHold_Success(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	booking := &models.Booking{
		ID:         uuid.New(),
		CustomerID: uuid.New(),
		VendorID:   uuid.New(),
		TotalPrice: decimal.RequireFromString("150.00"),
		Currency:   "CHF",
	}

	store.On("GetActiveByBookingID", mock.Anything, booking.ID).Return(nil, repository.ErrEscrowNotFound)
	payments.On("AuthorizeHold", mock.Anything, booking.TotalPrice, "CHF", booking.CustomerID).Return("pay_1", nil)
	store.On("Create", mock.Anything, mock.AnythingOfType("*models.EscrowTransaction")).Return(nil)

	tx, err := svc.Hold(context.Background(), booking)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, tx.Status)
	assert.Equal(t, "pay_1", tx.PaymentRef)
	store.AssertExpectations(t)
}

func TestEscrowHold_IdempotentPerBooking(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	existing := heldTx("150.00")
	booking := &models.Booking{ID: existing.BookingID, TotalPrice: existing.Amount, Currency: "CHF"}

	store.On("GetActiveByBookingID", mock.Anything, booking.ID).Return(existing, nil)

	tx, err := svc.Hold(context.Background(), booking)
	assert.NoError(t, err)
	assert.Equal(t, existing, tx)
	payments.AssertNotCalled(t, "AuthorizeHold", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowHold_AmountMismatchConflict(t *testing.T) {
	store := new(mockEscrowStore)
	svc := NewEscrowService(store, new(mockDisputeFinder), new(mockPayments), quietSink())

	existing := heldTx("150.00")
	booking := &models.Booking{ID: existing.BookingID, TotalPrice: decimal.RequireFromString("200.00")}

	store.On("GetActiveByBookingID", mock.Anything, booking.ID).Return(existing, nil)

	_, err := svc.Hold(context.Background(), booking)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestEscrowHold_LostRaceVoidsAndReturnsWinner(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	winner := heldTx("150.00")
	booking := &models.Booking{
		ID:         winner.BookingID,
		CustomerID: winner.CustomerID,
		VendorID:   winner.VendorID,
		TotalPrice: winner.Amount,
		Currency:   "CHF",
	}

	store.On("GetActiveByBookingID", mock.Anything, booking.ID).Return(nil, repository.ErrEscrowNotFound).Once()
	payments.On("AuthorizeHold", mock.Anything, booking.TotalPrice, "CHF", booking.CustomerID).Return("pay_loser", nil)
	store.On("Create", mock.Anything, mock.Anything).Return(repository.ErrEscrowConflict)
	payments.On("Void", mock.Anything, "pay_loser").Return(nil)
	store.On("GetActiveByBookingID", mock.Anything, booking.ID).Return(winner, nil).Once()

	tx, err := svc.Hold(context.Background(), booking)
	assert.NoError(t, err)
	assert.Equal(t, winner, tx)
	payments.AssertCalled(t, "Void", mock.Anything, "pay_loser")
}

func TestEscrowHold_ZeroAmountRejected(t *testing.T) {
	svc := NewEscrowService(new(mockEscrowStore), new(mockDisputeFinder), new(mockPayments), quietSink())

	_, err := svc.Hold(context.Background(), &models.Booking{ID: uuid.New(), TotalPrice: decimal.Zero})
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowCapture_AlreadyCapturedIsNoOp(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusCaptured

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	got, err := svc.Capture(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, tx, got)
	payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestEscrowCapture_Success(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	captured := *tx
	captured.Status = models.EscrowStatusCaptured

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusCaptured, tx.RefundedAmount).
		Return(&captured, nil)
	payments.On("Capture", mock.Anything, tx.PaymentRef).Return("cap_1", nil)
	store.On("SetCaptureRef", mock.Anything, tx.ID, "cap_1").Return(nil)

	got, err := svc.Capture(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCaptured, got.Status)
	assert.Equal(t, "cap_1", *got.CaptureRef)
	store.AssertExpectations(t)
}

func TestEscrowCapture_LostRaceNeverHitsGateway(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	captured := *tx
	captured.Status = models.EscrowStatusCaptured

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil).Once()
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusCaptured, tx.RefundedAmount).
		Return(nil, repository.ErrEscrowTransition)
	store.On("GetByID", mock.Anything, tx.ID).Return(&captured, nil).Once()

	got, err := svc.Capture(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusCaptured, got.Status)
	// The concurrent winner owns the gateway call; the loser makes none.
	payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestEscrowRefund_PartialKeepsResidual(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	refundAmount := decimal.RequireFromString("50.00")
	partial := *tx
	partial.Status = models.EscrowStatusPartiallyRefunded
	partial.RefundedAmount = refundAmount

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusPartiallyRefunded, refundAmount).
		Return(&partial, nil)
	payments.On("Refund", mock.Anything, tx.PaymentRef, refundAmount).Return("ref_1", nil)

	got, err := svc.Refund(context.Background(), tx.ID, refundAmount)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusPartiallyRefunded, got.Status)
	assert.True(t, got.Remaining().Equal(decimal.RequireFromString("100.00")))
}

func TestEscrowRefund_FullClosesTransaction(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	refunded := *tx
	refunded.Status = models.EscrowStatusRefunded
	refunded.RefundedAmount = tx.Amount

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusRefunded, tx.Amount).
		Return(&refunded, nil)
	payments.On("Refund", mock.Anything, tx.PaymentRef, tx.Amount).Return("ref_1", nil)

	got, err := svc.Refund(context.Background(), tx.ID, tx.Amount)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, got.Status)
	assert.True(t, got.Remaining().IsZero())
}

func TestEscrowRefund_LostRaceNeverHitsGateway(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusCaptured
	refunded := *tx
	refunded.Status = models.EscrowStatusRefunded
	refunded.RefundedAmount = tx.Amount

	// Two handlers pick up the same refund event; this one loses the claim.
	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil).Once()
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusCaptured, models.EscrowStatusRefunded, tx.Amount).
		Return(nil, repository.ErrEscrowTransition)
	store.On("GetByID", mock.Anything, tx.ID).Return(&refunded, nil).Once()

	got, err := svc.Refund(context.Background(), tx.ID, tx.Amount)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, got.Status)
	// Only the claim winner refunds at the gateway; the customer is paid once.
	payments.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowRefund_GatewayFailureSurrendersClaim(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	tx := heldTx("150.00")
	refunded := *tx
	refunded.Status = models.EscrowStatusRefunded
	refunded.RefundedAmount = tx.Amount

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusRefunded, tx.Amount).
		Return(&refunded, nil).Once()
	payments.On("Refund", mock.Anything, tx.PaymentRef, tx.Amount).
		Return("", apperror.New(apperror.ErrCodeRetryable, "gateway down"))
	// The claim is rolled back so a retry can run the gateway call again.
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusRefunded, models.EscrowStatusHeld, tx.RefundedAmount).
		Return(tx, nil).Once()

	_, err := svc.Refund(context.Background(), tx.ID, tx.Amount)
	assert.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
	store.AssertExpectations(t)
}

func TestEscrowRefund_ExceedingAmountRejected(t *testing.T) {
	store := new(mockEscrowStore)
	svc := NewEscrowService(store, new(mockDisputeFinder), new(mockPayments), quietSink())

	tx := heldTx("150.00")
	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	_, err := svc.Refund(context.Background(), tx.ID, decimal.RequireFromString("200.00"))
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowRefund_TerminalStatusRejected(t *testing.T) {
	store := new(mockEscrowStore)
	svc := NewEscrowService(store, new(mockDisputeFinder), new(mockPayments), quietSink())

	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusRefunded
	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)

	_, err := svc.Refund(context.Background(), tx.ID, decimal.RequireFromString("10.00"))
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestEscrowRelease_BlockedByActiveDispute(t *testing.T) {
	store := new(mockEscrowStore)
	disputes := new(mockDisputeFinder)
	svc := NewEscrowService(store, disputes, new(mockPayments), quietSink())

	tx := heldTx("150.00")
	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	disputes.On("GetActiveByEscrowTxID", mock.Anything, tx.ID).
		Return(&models.Dispute{ID: uuid.New(), Status: models.DisputeStatusOpen}, nil)

	_, err := svc.Release(context.Background(), tx.ID)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestEscrowRelease_HeldFundsCapturedOnTheWayOut(t *testing.T) {
	store := new(mockEscrowStore)
	disputes := new(mockDisputeFinder)
	payments := new(mockPayments)
	svc := NewEscrowService(store, disputes, payments, quietSink())

	tx := heldTx("150.00")
	released := *tx
	released.Status = models.EscrowStatusReleased

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	disputes.On("GetActiveByEscrowTxID", mock.Anything, tx.ID).Return(nil, repository.ErrDisputeNotFound)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusHeld, models.EscrowStatusReleased, tx.RefundedAmount).
		Return(&released, nil)
	payments.On("Capture", mock.Anything, tx.PaymentRef).Return("cap_1", nil)
	store.On("SetCaptureRef", mock.Anything, tx.ID, "cap_1").Return(nil)

	got, err := svc.Release(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, got.Status)
	payments.AssertCalled(t, "Capture", mock.Anything, tx.PaymentRef)
}

func TestEscrowRelease_PartialRefundRemainderCaptured(t *testing.T) {
	store := new(mockEscrowStore)
	disputes := new(mockDisputeFinder)
	payments := new(mockPayments)
	svc := NewEscrowService(store, disputes, payments, quietSink())

	// A split settlement on a never-captured hold: part refunded, the vendor's
	// remainder still sitting uncollected on the authorization.
	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusPartiallyRefunded
	tx.RefundedAmount = decimal.RequireFromString("78.00")
	released := *tx
	released.Status = models.EscrowStatusReleased

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	disputes.On("GetActiveByEscrowTxID", mock.Anything, tx.ID).Return(nil, repository.ErrDisputeNotFound)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusPartiallyRefunded, models.EscrowStatusReleased, tx.RefundedAmount).
		Return(&released, nil)
	payments.On("Capture", mock.Anything, tx.PaymentRef).Return("cap_1", nil)
	store.On("SetCaptureRef", mock.Anything, tx.ID, "cap_1").Return(nil)

	got, err := svc.Release(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, got.Status)
	payments.AssertCalled(t, "Capture", mock.Anything, tx.PaymentRef)
	store.AssertExpectations(t)
}

func TestEscrowRelease_AlreadyCapturedSkipsGateway(t *testing.T) {
	store := new(mockEscrowStore)
	disputes := new(mockDisputeFinder)
	payments := new(mockPayments)
	svc := NewEscrowService(store, disputes, payments, quietSink())

	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusCaptured
	ref := "cap_0"
	tx.CaptureRef = &ref
	released := *tx
	released.Status = models.EscrowStatusReleased

	store.On("GetByID", mock.Anything, tx.ID).Return(tx, nil)
	disputes.On("GetActiveByEscrowTxID", mock.Anything, tx.ID).Return(nil, repository.ErrDisputeNotFound)
	store.On("Transition", mock.Anything, tx.ID, models.EscrowStatusCaptured, models.EscrowStatusReleased, tx.RefundedAmount).
		Return(&released, nil)

	got, err := svc.Release(context.Background(), tx.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, got.Status)
	payments.AssertNotCalled(t, "Capture", mock.Anything, mock.Anything)
}

func TestEscrowVoid_NoActiveEscrowIsNoOp(t *testing.T) {
	store := new(mockEscrowStore)
	payments := new(mockPayments)
	svc := NewEscrowService(store, new(mockDisputeFinder), payments, quietSink())

	bookingID := uuid.New()
	store.On("GetActiveByBookingID", mock.Anything, bookingID).Return(nil, repository.ErrEscrowNotFound)

	err := svc.Void(context.Background(), bookingID)
	assert.NoError(t, err)
	payments.AssertNotCalled(t, "Void", mock.Anything, mock.Anything)
}

func TestEscrowVoid_CapturedFundsRejected(t *testing.T) {
	store := new(mockEscrowStore)
	svc := NewEscrowService(store, new(mockDisputeFinder), new(mockPayments), quietSink())

	tx := heldTx("150.00")
	tx.Status = models.EscrowStatusCaptured
	store.On("GetActiveByBookingID", mock.Anything, tx.BookingID).Return(tx, nil)

	err := svc.Void(context.Background(), tx.BookingID)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}
