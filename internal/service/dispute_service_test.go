package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/helvetio/marketplace-backend/internal/mediation"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
)

type mockDisputeStore struct {
	mock.Mock
}

func (m *mockDisputeStore) Create(ctx context.Context, d *models.Dispute, p *models.DisputePhase) error {
	args := m.Called(ctx, d, p)
	if args.Error(0) == nil {
		d.ID = uuid.New()
		p.DisputeID = d.ID
	}
	return args.Error(0)
}

func (m *mockDisputeStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) GetPhase(ctx context.Context, disputeID uuid.UUID) (*models.DisputePhase, error) {
	args := m.Called(ctx, disputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputePhase), args.Error(1)
}

func (m *mockDisputeStore) AdvancePhase(ctx context.Context, p *models.DisputePhase, fromPhase string) error {
	args := m.Called(ctx, p, fromPhase)
	return args.Error(0)
}

func (m *mockDisputeStore) Resolve(ctx context.Context, disputeID uuid.UUID, outcome, resolution, fromPhase string) (*models.Dispute, error) {
	args := m.Called(ctx, disputeID, outcome, resolution, fromPhase)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) MarkUnderReview(ctx context.Context, disputeID uuid.UUID) error {
	args := m.Called(ctx, disputeID)
	return args.Error(0)
}

func (m *mockDisputeStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeStore) AddEvidence(ctx context.Context, e *models.DisputeEvidence) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockDisputeStore) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.DisputeEvidence), args.Error(1)
}

func (m *mockDisputeStore) CreateSettlementOffer(ctx context.Context, o *models.SettlementOffer) error {
	args := m.Called(ctx, o)
	if args.Error(0) == nil {
		o.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockDisputeStore) GetSettlementOffer(ctx context.Context, id uuid.UUID) (*models.SettlementOffer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SettlementOffer), args.Error(1)
}

func (m *mockDisputeStore) UpdateSettlementStatus(ctx context.Context, id uuid.UUID, from, to string) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *mockDisputeStore) ListSettlementOffers(ctx context.Context, disputeID uuid.UUID) ([]models.SettlementOffer, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.SettlementOffer), args.Error(1)
}

type mockDisputeEscrow struct {
	mock.Mock
}

func (m *mockDisputeEscrow) GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockDisputeEscrow) Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, txID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

func (m *mockDisputeEscrow) Release(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, txID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowTransaction), args.Error(1)
}

type mockProposer struct {
	mock.Mock
}

func (m *mockProposer) Propose(ctx context.Context, dispute mediation.DisputeContext) (*mediation.Proposal, error) {
	args := m.Called(ctx, dispute)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mediation.Proposal), args.Error(1)
}

type disputeFixture struct {
	store    *mockDisputeStore
	bookings *mockBookingStore
	escrow   *mockDisputeEscrow
	mediator *mockProposer
	decider  *mockProposer
	svc      *DisputeService

	now time.Time
}

var testWindows = PhaseWindows{
	Phase1: 7 * 24 * time.Hour,
	Phase2: 7 * 24 * time.Hour,
	Phase3: 7 * 24 * time.Hour,
}

func newDisputeFixture(t *testing.T) *disputeFixture {
	t.Helper()

	f := &disputeFixture{
		store:    new(mockDisputeStore),
		bookings: new(mockBookingStore),
		escrow:   new(mockDisputeEscrow),
		mediator: new(mockProposer),
		decider:  new(mockProposer),
		now:      time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewDisputeService(f.store, f.bookings, f.escrow, f.mediator, f.decider, quietSink(),
		testWindows, func() time.Time { return f.now })
	return f
}

func (f *disputeFixture) openDispute(amount string) *models.Dispute {
	txID := uuid.New()
	return &models.Dispute{
		ID:           uuid.New(),
		BookingID:    uuid.New(),
		EscrowTxID:   &txID,
		CustomerID:   uuid.New(),
		VendorID:     uuid.New(),
		RaisedByRole: models.RoleCustomer,
		Reason:       models.DisputeReasonPoorQuality,
		Description:  "work not as agreed",
		Status:       models.DisputeStatusOpen,
		EscrowAmount: decimal.RequireFromString(amount),
	}
}

func (f *disputeFixture) phaseAt(phase string, started time.Time) *models.DisputePhase {
	p := &models.DisputePhase{
		ID:              uuid.New(),
		CurrentPhase:    phase,
		Phase1StartedAt: started,
		Phase1Deadline:  started.Add(testWindows.Phase1),
	}
	if models.PhaseRank(phase) >= models.PhaseRank(models.PhaseAIMediation) {
		s2 := started.Add(testWindows.Phase1)
		d2 := s2.Add(testWindows.Phase2)
		p.Phase2StartedAt = &s2
		p.Phase2Deadline = &d2
	}
	if models.PhaseRank(phase) >= models.PhaseRank(models.PhaseDecisionWait) {
		s3 := started.Add(testWindows.Phase1 + testWindows.Phase2)
		d3 := s3.Add(testWindows.Phase3)
		p.Phase3StartedAt = &s3
		p.Phase3Deadline = &d3
	}
	return p
}

func TestRaiseDispute_SnapshotsRemainingEscrow(t *testing.T) {
	f := newDisputeFixture(t)
	booking := &models.Booking{ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New()}
	tx := &models.EscrowTransaction{
		ID:             uuid.New(),
		BookingID:      booking.ID,
		Amount:         decimal.RequireFromString("200.00"),
		RefundedAmount: decimal.RequireFromString("50.00"),
		Status:         models.EscrowStatusPartiallyRefunded,
	}

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.escrow.On("GetByBooking", mock.Anything, booking.ID).Return(tx, nil)
	f.store.On("Create", mock.Anything, mock.AnythingOfType("*models.Dispute"), mock.AnythingOfType("*models.DisputePhase")).Return(nil)

	view, err := f.svc.RaiseDispute(context.Background(), booking.ID, booking.CustomerID,
		models.DisputeReasonPoorQuality, "half the work is missing")
	assert.NoError(t, err)
	assert.True(t, view.Dispute.EscrowAmount.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, models.RoleCustomer, view.Dispute.RaisedByRole)
	assert.Equal(t, models.PhaseNegotiation, view.Phase.CurrentPhase)
	assert.Equal(t, f.now.Add(testWindows.Phase1), view.Phase.Phase1Deadline)
}

func TestRaiseDispute_NoEscrowRejected(t *testing.T) {
	f := newDisputeFixture(t)
	booking := &models.Booking{ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New()}

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.escrow.On("GetByBooking", mock.Anything, booking.ID).Return(nil, apperror.ErrEscrowNotFound)

	_, err := f.svc.RaiseDispute(context.Background(), booking.ID, booking.CustomerID,
		models.DisputeReasonNoShow, "vendor never showed up")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestRaiseDispute_SecondDisputeConflicts(t *testing.T) {
	f := newDisputeFixture(t)
	booking := &models.Booking{ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New()}
	tx := &models.EscrowTransaction{ID: uuid.New(), Amount: decimal.RequireFromString("100.00"), Status: models.EscrowStatusHeld}

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)
	f.escrow.On("GetByBooking", mock.Anything, booking.ID).Return(tx, nil)
	f.store.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(repository.ErrDisputeExists)

	_, err := f.svc.RaiseDispute(context.Background(), booking.ID, booking.CustomerID,
		models.DisputeReasonOther, "duplicate")
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestRaiseDispute_StrangerForbidden(t *testing.T) {
	f := newDisputeFixture(t)
	booking := &models.Booking{ID: uuid.New(), CustomerID: uuid.New(), VendorID: uuid.New()}

	f.bookings.On("GetByID", mock.Anything, booking.ID).Return(booking, nil)

	_, err := f.svc.RaiseDispute(context.Background(), booking.ID, uuid.New(),
		models.DisputeReasonOther, "not my booking")
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
}

func TestGetDispute_ExpiredPhase1AdvancesLazily(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	stale := f.phaseAt(models.PhaseNegotiation, f.now.Add(-8*24*time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(stale, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.MatchedBy(func(p *models.DisputePhase) bool {
		return p.CurrentPhase == models.PhaseAIMediation
	}), models.PhaseNegotiation).Return(nil)

	view, err := f.svc.GetDispute(context.Background(), d.ID, d.CustomerID)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseAIMediation, view.Phase.CurrentPhase)
	assert.Equal(t, f.now, *view.Phase.Phase2StartedAt)
	assert.Equal(t, f.now.Add(testWindows.Phase2), *view.Phase.Phase2Deadline)
}

func TestGetDispute_ExpiryAdvancesOneStepOnly(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	// Past both the phase 1 and would-be phase 2 deadlines.
	stale := f.phaseAt(models.PhaseNegotiation, f.now.Add(-30*24*time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(stale, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.Anything, models.PhaseNegotiation).Return(nil)

	view, err := f.svc.GetDispute(context.Background(), d.ID, d.CustomerID)
	assert.NoError(t, err)
	// One step per evaluation: the fresh phase 2 deadline starts now.
	assert.Equal(t, models.PhaseAIMediation, view.Phase.CurrentPhase)
}

func TestGetDispute_DecisionWaitNeverSelfExpires(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	stale := f.phaseAt(models.PhaseDecisionWait, f.now.Add(-60*24*time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(stale, nil)

	view, err := f.svc.GetDispute(context.Background(), d.ID, d.CustomerID)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseDecisionWait, view.Phase.CurrentPhase)
	f.store.AssertNotCalled(t, "AdvancePhase", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetDispute_LostExpiryRaceReReads(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	stale := f.phaseAt(models.PhaseNegotiation, f.now.Add(-8*24*time.Hour))
	winner := f.phaseAt(models.PhaseAIMediation, f.now.Add(-8*24*time.Hour))

	f.store.On("GetPhase", mock.Anything, d.ID).Return(stale, nil).Once()
	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.Anything, models.PhaseNegotiation).Return(repository.ErrPhaseChanged)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(winner, nil).Once()

	view, err := f.svc.GetDispute(context.Background(), d.ID, d.CustomerID)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseAIMediation, view.Phase.CurrentPhase)
}

func TestProposeSettlement_AmountAboveEscrowRejected(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := f.svc.ProposeSettlement(context.Background(), d.ID, d.CustomerID,
		decimal.RequireFromString("150.00"), "")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestProposeSettlement_ClosedInDecisionPhase(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseDecisionWait, f.now.Add(-20*24*time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)

	_, err := f.svc.ProposeSettlement(context.Background(), d.ID, d.CustomerID,
		decimal.RequireFromString("50.00"), "")
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestAcceptSettlement_SplitResolvesWithRefundAndRelease(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))
	offer := &models.SettlementOffer{
		ID:             uuid.New(),
		DisputeID:      d.ID,
		ProposedBy:     d.CustomerID,
		CustomerAmount: decimal.RequireFromString("60.00"),
		Status:         models.SettlementPending,
	}
	resolved := *d
	resolved.Status = models.DisputeStatusResolvedSplit

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("GetSettlementOffer", mock.Anything, offer.ID).Return(offer, nil)
	f.store.On("UpdateSettlementStatus", mock.Anything, offer.ID, models.SettlementPending, models.SettlementAccepted).Return(nil)
	f.store.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedSplit, mock.Anything, models.PhaseNegotiation).Return(&resolved, nil)
	f.escrow.On("Refund", mock.Anything, *d.EscrowTxID, offer.CustomerAmount).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusPartiallyRefunded}, nil)
	f.escrow.On("Release", mock.Anything, *d.EscrowTxID).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusReleased}, nil)

	// The vendor accepts the customer's offer.
	view, err := f.svc.AcceptSettlement(context.Background(), d.ID, offer.ID, d.VendorID)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedSplit, view.Dispute.Status)
	f.escrow.AssertExpectations(t)
}

func TestAcceptSettlement_FullAmountResolvesForCustomer(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))
	offer := &models.SettlementOffer{
		ID:             uuid.New(),
		DisputeID:      d.ID,
		ProposedBy:     d.VendorID,
		CustomerAmount: decimal.RequireFromString("100.00"),
		Status:         models.SettlementPending,
	}
	resolved := *d
	resolved.Status = models.DisputeStatusResolvedCustomer

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("GetSettlementOffer", mock.Anything, offer.ID).Return(offer, nil)
	f.store.On("UpdateSettlementStatus", mock.Anything, offer.ID, models.SettlementPending, models.SettlementAccepted).Return(nil)
	f.store.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedCustomer, mock.Anything, models.PhaseNegotiation).Return(&resolved, nil)
	f.escrow.On("Refund", mock.Anything, *d.EscrowTxID, d.EscrowAmount).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusRefunded}, nil)

	view, err := f.svc.AcceptSettlement(context.Background(), d.ID, offer.ID, d.CustomerID)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedCustomer, view.Dispute.Status)
	f.escrow.AssertNotCalled(t, "Release", mock.Anything, mock.Anything)
}

func TestAcceptSettlement_ProposerCannotAccept(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	offer := &models.SettlementOffer{
		ID:         uuid.New(),
		DisputeID:  d.ID,
		ProposedBy: d.CustomerID,
		Status:     models.SettlementPending,
	}

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetSettlementOffer", mock.Anything, offer.ID).Return(offer, nil)

	_, err := f.svc.AcceptSettlement(context.Background(), d.ID, offer.ID, d.CustomerID)
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestAcceptSettlement_ClosedAfterLazyAdvanceToDecision(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	// The phase 2 deadline has long passed; the read advances the dispute
	// into the decision stage before the acceptance is considered.
	stale := f.phaseAt(models.PhaseAIMediation, f.now.Add(-30*24*time.Hour))
	offer := &models.SettlementOffer{
		ID:             uuid.New(),
		DisputeID:      d.ID,
		ProposedBy:     d.VendorID,
		CustomerAmount: decimal.RequireFromString("60.00"),
		Status:         models.SettlementPending,
	}

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetSettlementOffer", mock.Anything, offer.ID).Return(offer, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(stale, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.Anything, models.PhaseAIMediation).Return(nil)

	_, err := f.svc.AcceptSettlement(context.Background(), d.ID, offer.ID, d.CustomerID)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	f.store.AssertNotCalled(t, "UpdateSettlementStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.escrow.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptSettlement_ResolutionSurvivesEscrowFailure(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))
	offer := &models.SettlementOffer{
		ID:             uuid.New(),
		DisputeID:      d.ID,
		ProposedBy:     d.VendorID,
		CustomerAmount: decimal.RequireFromString("100.00"),
		Status:         models.SettlementPending,
	}
	resolved := *d
	resolved.Status = models.DisputeStatusResolvedCustomer

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("GetSettlementOffer", mock.Anything, offer.ID).Return(offer, nil)
	f.store.On("UpdateSettlementStatus", mock.Anything, offer.ID, models.SettlementPending, models.SettlementAccepted).Return(nil)
	f.store.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedCustomer, mock.Anything, models.PhaseNegotiation).Return(&resolved, nil)
	f.escrow.On("Refund", mock.Anything, *d.EscrowTxID, d.EscrowAmount).
		Return(nil, apperror.New(apperror.ErrCodeRetryable, "gateway down"))

	view, err := f.svc.AcceptSettlement(context.Background(), d.ID, offer.ID, d.CustomerID)
	assert.Error(t, err)
	// The ruling stands; only the payout needs a retry.
	assert.NotNil(t, view)
	assert.Equal(t, models.DisputeStatusResolvedCustomer, view.Dispute.Status)
}

func TestEscalate_FromNegotiation(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.MatchedBy(func(next *models.DisputePhase) bool {
		return next.CurrentPhase == models.PhaseAIMediation && next.Phase2StartedAt != nil
	}), models.PhaseNegotiation).Return(nil)

	view, err := f.svc.Escalate(context.Background(), d.ID, d.VendorID)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseAIMediation, view.Phase.CurrentPhase)
	assert.Equal(t, f.now.Add(testWindows.Phase2), *view.Phase.Phase2Deadline)
}

func TestEscalate_FailedMediationHandsToDecision(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseAIMediation, f.now.Add(-time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.MatchedBy(func(next *models.DisputePhase) bool {
		return next.CurrentPhase == models.PhaseDecisionWait && next.Phase3StartedAt != nil
	}), models.PhaseAIMediation).Return(nil)

	// The parties need not sit out the mediation window after rejecting the
	// proposal; either one can hand the dispute to the decision stage.
	view, err := f.svc.Escalate(context.Background(), d.ID, d.CustomerID)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseDecisionWait, view.Phase.CurrentPhase)
	assert.Equal(t, f.now, *view.Phase.Phase3StartedAt)
	assert.Equal(t, f.now.Add(testWindows.Phase3), *view.Phase.Phase3Deadline)
}

func TestEscalate_NothingLeftInDecisionPhase(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseDecisionWait, f.now.Add(-time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)

	_, err := f.svc.Escalate(context.Background(), d.ID, d.CustomerID)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	f.store.AssertNotCalled(t, "AdvancePhase", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviewDecision_ApproveAdoptsAutomatedRuling(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseDecisionWait, f.now.Add(-20*24*time.Hour))
	resolved := *d
	resolved.Status = models.DisputeStatusResolvedSplit

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("ListEvidence", mock.Anything, d.ID).Return([]models.DisputeEvidence{}, nil)
	f.decider.On("Propose", mock.Anything, mock.Anything).Return(&mediation.Proposal{
		Outcome:        models.DisputeStatusResolvedSplit,
		CustomerAmount: decimal.RequireFromString("40.00"),
		Summary:        "partial delivery",
	}, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.MatchedBy(func(next *models.DisputePhase) bool {
		return next.CurrentPhase == models.PhaseDecisionAI
	}), models.PhaseDecisionWait).Return(nil)
	f.store.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedSplit, "partial delivery", models.PhaseDecisionAI).Return(&resolved, nil)
	f.escrow.On("Refund", mock.Anything, *d.EscrowTxID, decimal.RequireFromString("40.00")).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusPartiallyRefunded}, nil)
	f.escrow.On("Release", mock.Anything, *d.EscrowTxID).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusReleased}, nil)

	view, err := f.svc.ReviewDecision(context.Background(), d.ID, true)
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedSplit, view.Dispute.Status)
}

func TestReviewDecision_EscalateHandsToExternalArbiter(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseDecisionWait, f.now.Add(-20*24*time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("AdvancePhase", mock.Anything, mock.MatchedBy(func(next *models.DisputePhase) bool {
		return next.CurrentPhase == models.PhaseDecisionExt
	}), models.PhaseDecisionWait).Return(nil)

	view, err := f.svc.ReviewDecision(context.Background(), d.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, models.PhaseDecisionExt, view.Phase.CurrentPhase)
	f.decider.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
}

func TestReviewDecision_WrongPhaseRejected(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)

	_, err := f.svc.ReviewDecision(context.Background(), d.ID, true)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestResolveExternal_SplitBoundsEnforced(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := f.svc.ResolveExternal(context.Background(), d.ID,
		models.DisputeStatusResolvedSplit, decimal.RequireFromString("100.00"), "split everything")
	assert.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestResolveExternal_AppliesArbiterRuling(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseDecisionExt, f.now.Add(-30*24*time.Hour))
	resolved := *d
	resolved.Status = models.DisputeStatusResolvedVendor

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)
	f.store.On("Resolve", mock.Anything, d.ID, models.DisputeStatusResolvedVendor, "claim unfounded", models.PhaseDecisionExt).Return(&resolved, nil)
	f.escrow.On("Release", mock.Anything, *d.EscrowTxID).
		Return(&models.EscrowTransaction{Status: models.EscrowStatusReleased}, nil)

	view, err := f.svc.ResolveExternal(context.Background(), d.ID,
		models.DisputeStatusResolvedVendor, decimal.Zero, "claim unfounded")
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedVendor, view.Dispute.Status)
}

func TestRequestMediation_Phase2Only(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	p := f.phaseAt(models.PhaseNegotiation, f.now.Add(-time.Hour))

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)
	f.store.On("GetPhase", mock.Anything, d.ID).Return(p, nil)

	_, err := f.svc.RequestMediationProposal(context.Background(), d.ID, d.CustomerID)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
	f.mediator.AssertNotCalled(t, "Propose", mock.Anything, mock.Anything)
}

func TestAddEvidence_ResolvedDisputeRejected(t *testing.T) {
	f := newDisputeFixture(t)
	d := f.openDispute("100.00")
	d.Status = models.DisputeStatusResolvedVendor

	f.store.On("GetByID", mock.Anything, d.ID).Return(d, nil)

	_, err := f.svc.AddEvidence(context.Background(), d.ID, d.CustomerID, "evidence/x.png", "image/png", 1024)
	assert.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))
}
