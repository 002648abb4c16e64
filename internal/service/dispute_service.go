package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/helvetio/marketplace-backend/internal/logger"
	"github.com/helvetio/marketplace-backend/internal/mediation"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/pkg/apperror"
	"github.com/helvetio/marketplace-backend/internal/repository"
)

// DisputeStore is the slice of the dispute repository the service needs.
type DisputeStore interface {
	Create(ctx context.Context, d *models.Dispute, p *models.DisputePhase) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.Dispute, error)
	GetPhase(ctx context.Context, disputeID uuid.UUID) (*models.DisputePhase, error)
	AdvancePhase(ctx context.Context, p *models.DisputePhase, fromPhase string) error
	Resolve(ctx context.Context, disputeID uuid.UUID, outcome, resolution, fromPhase string) (*models.Dispute, error)
	MarkUnderReview(ctx context.Context, disputeID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	AddEvidence(ctx context.Context, e *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error)
	CreateSettlementOffer(ctx context.Context, o *models.SettlementOffer) error
	GetSettlementOffer(ctx context.Context, id uuid.UUID) (*models.SettlementOffer, error)
	UpdateSettlementStatus(ctx context.Context, id uuid.UUID, from, to string) error
	ListSettlementOffers(ctx context.Context, disputeID uuid.UUID) ([]models.SettlementOffer, error)
}

// DisputeEscrow is the escrow surface a resolution drives.
type DisputeEscrow interface {
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error)
	Refund(ctx context.Context, txID uuid.UUID, amount decimal.Decimal) (*models.EscrowTransaction, error)
	Release(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error)
}

// DisputeBookings resolves the booking a dispute is raised against.
type DisputeBookings interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
}

// PhaseWindows holds the durations of each timed resolution phase.
type PhaseWindows struct {
	Phase1 time.Duration
	Phase2 time.Duration
	Phase3 time.Duration
}

// DisputeView bundles a dispute with its current phase state after lazy
// deadline evaluation.
type DisputeView struct {
	Dispute *models.Dispute      `json:"dispute"`
	Phase   *models.DisputePhase `json:"phase"`
}

// DisputeService drives the staged resolution of booking disputes. Phases
// only move forward; elapsed deadlines are applied lazily on the next access
// rather than by a background scheduler.
type DisputeService struct {
	disputes DisputeStore
	bookings DisputeBookings
	escrow   DisputeEscrow
	mediator MediationCapability
	decider  DecisionCapability
	sink     NotificationSink
	windows  PhaseWindows
	clock    Clock
}

func NewDisputeService(
	disputes DisputeStore,
	bookings DisputeBookings,
	escrow DisputeEscrow,
	mediator MediationCapability,
	decider DecisionCapability,
	sink NotificationSink,
	windows PhaseWindows,
	clock Clock,
) *DisputeService {
	if clock == nil {
		clock = time.Now
	}
	return &DisputeService{
		disputes: disputes,
		bookings: bookings,
		escrow:   escrow,
		mediator: mediator,
		decider:  decider,
		sink:     sink,
		windows:  windows,
		clock:    clock,
	}
}

// RaiseDispute opens a dispute against an escrow-backed booking. The escrowed
// amount is snapshotted on the dispute so later refunds have a fixed ceiling.
func (s *DisputeService) RaiseDispute(ctx context.Context, bookingID, userID uuid.UUID, reason, description string) (*DisputeView, error) {
	if !models.IsValidDisputeReason(reason) {
		return nil, apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("unknown dispute reason %q", reason))
	}
	if description == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "a description is required")
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, apperror.ErrBookingNotFound
		}
		return nil, err
	}

	var role string
	switch userID {
	case booking.CustomerID:
		role = models.RoleCustomer
	case booking.VendorID:
		role = models.RoleVendor
	default:
		return nil, apperror.ErrForbidden
	}

	tx, err := s.escrow.GetByBooking(ctx, bookingID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.New(apperror.ErrCodeValidation, "booking has no funds in escrow")
		}
		return nil, err
	}

	now := s.clock()
	d := &models.Dispute{
		BookingID:    bookingID,
		EscrowTxID:   &tx.ID,
		CustomerID:   booking.CustomerID,
		VendorID:     booking.VendorID,
		RaisedByRole: role,
		Reason:       reason,
		Description:  description,
		Status:       models.DisputeStatusOpen,
		EscrowAmount: tx.Remaining(),
	}
	p := &models.DisputePhase{
		CurrentPhase:    models.PhaseNegotiation,
		Phase1StartedAt: now,
		Phase1Deadline:  now.Add(s.windows.Phase1),
	}

	if err := s.disputes.Create(ctx, d, p); err != nil {
		if errors.Is(err, repository.ErrDisputeExists) {
			return nil, apperror.New(apperror.ErrCodeConflict, "an active dispute already exists for this booking")
		}
		return nil, err
	}

	s.sink.Notify(s.counterparty(d, userID), models.EventDisputeOpened, d)
	return &DisputeView{Dispute: d, Phase: p}, nil
}

// GetDispute returns a dispute with its phase after lazy deadline evaluation.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, userID uuid.UUID) (*DisputeView, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}
	return &DisputeView{Dispute: d, Phase: p}, nil
}

// ListDisputes returns the user's disputes on either side.
func (s *DisputeService) ListDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// ProposeSettlement records one party's offered split of the escrowed amount.
// Offers are open during negotiation and mediation; reaching the decision
// stage takes the matter out of the parties' hands.
func (s *DisputeService) ProposeSettlement(ctx context.Context, disputeID, userID uuid.UUID, customerAmount decimal.Decimal, message string) (*models.SettlementOffer, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}
	if customerAmount.IsNegative() || customerAmount.GreaterThan(d.EscrowAmount) {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("settlement amount must be between 0 and %s", d.EscrowAmount))
	}

	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}
	switch p.CurrentPhase {
	case models.PhaseNegotiation, models.PhaseAIMediation:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("settlement offers are closed in phase %q", p.CurrentPhase))
	}

	offer := &models.SettlementOffer{
		DisputeID:      disputeID,
		ProposedBy:     userID,
		CustomerAmount: customerAmount,
		Message:        message,
		Status:         models.SettlementPending,
	}
	if err := s.disputes.CreateSettlementOffer(ctx, offer); err != nil {
		return nil, err
	}

	s.sink.Notify(s.counterparty(d, userID), models.EventDisputePhaseAdvanced, offer)
	return offer, nil
}

// AcceptSettlement is the counterparty agreeing to a pending offer. Mutual
// agreement ends the dispute immediately, skipping the remaining phases.
func (s *DisputeService) AcceptSettlement(ctx context.Context, disputeID, offerID, userID uuid.UUID) (*DisputeView, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}

	offer, err := s.disputes.GetSettlementOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.DisputeID != disputeID {
		return nil, apperror.New(apperror.ErrCodeValidation, "offer does not belong to this dispute")
	}
	if offer.ProposedBy == userID {
		return nil, apperror.New(apperror.ErrCodeValidation, "an offer cannot be accepted by its proposer")
	}
	if offer.Status != models.SettlementPending {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("offer is %s, not pending", offer.Status))
	}

	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}
	switch p.CurrentPhase {
	case models.PhaseNegotiation, models.PhaseAIMediation:
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("settlement offers are closed in phase %q", p.CurrentPhase))
	}

	if err := s.disputes.UpdateSettlementStatus(ctx, offerID, models.SettlementPending, models.SettlementAccepted); err != nil {
		if errors.Is(err, repository.ErrPhaseChanged) {
			return nil, apperror.New(apperror.ErrCodeConflict, "the offer was decided concurrently")
		}
		return nil, err
	}

	outcome := offer.OutcomeFor(d.EscrowAmount)
	resolution := fmt.Sprintf("settlement agreed: %s of %s to the customer", offer.CustomerAmount, d.EscrowAmount)
	return s.applyOutcome(ctx, d, p.CurrentPhase, outcome, offer.CustomerAmount, resolution)
}

// RejectSettlement declines a pending offer without moving the phase.
func (s *DisputeService) RejectSettlement(ctx context.Context, disputeID, offerID, userID uuid.UUID) error {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return err
	}
	offer, err := s.disputes.GetSettlementOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.DisputeID != disputeID {
		return apperror.New(apperror.ErrCodeValidation, "offer does not belong to this dispute")
	}
	if offer.ProposedBy == userID {
		return apperror.New(apperror.ErrCodeValidation, "an offer cannot be rejected by its proposer")
	}
	if err := s.disputes.UpdateSettlementStatus(ctx, offerID, models.SettlementPending, models.SettlementRejected); err != nil {
		if errors.Is(err, repository.ErrPhaseChanged) {
			return apperror.New(apperror.ErrCodeConflict, "the offer was decided concurrently")
		}
		return err
	}
	s.sink.Notify(s.counterparty(d, userID), models.EventDisputePhaseAdvanced, offer)
	return nil
}

// ListSettlementOffers returns the offer history visible to a party.
func (s *DisputeService) ListSettlementOffers(ctx context.Context, disputeID, userID uuid.UUID) ([]models.SettlementOffer, error) {
	if _, err := s.getParty(ctx, disputeID, userID); err != nil {
		return nil, err
	}
	return s.disputes.ListSettlementOffers(ctx, disputeID)
}

// Escalate lets a party end the current stage early instead of waiting out
// its deadline: negotiation hands over to mediation, and a mediation that
// produced no agreement hands the dispute to the decision stage. Once the
// decision stage is reached there is nothing left to escalate.
func (s *DisputeService) Escalate(ctx context.Context, disputeID, userID uuid.UUID) (*DisputeView, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}

	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	next := *p
	switch p.CurrentPhase {
	case models.PhaseNegotiation:
		deadline := now.Add(s.windows.Phase2)
		next.CurrentPhase = models.PhaseAIMediation
		next.Phase2StartedAt = &now
		next.Phase2Deadline = &deadline
	case models.PhaseAIMediation:
		deadline := now.Add(s.windows.Phase3)
		next.CurrentPhase = models.PhaseDecisionWait
		next.Phase3StartedAt = &now
		next.Phase3Deadline = &deadline
	default:
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("cannot escalate from phase %q", p.CurrentPhase))
	}
	if err := s.persistAdvance(ctx, &next, p.CurrentPhase); err != nil {
		return nil, err
	}

	s.sink.Notify(s.counterparty(d, userID), models.EventDisputePhaseAdvanced, &next)
	return &DisputeView{Dispute: d, Phase: &next}, nil
}

// RequestMediationProposal asks the mediation capability for a recommended
// split. Transport failures surface as retryable and leave the phase alone.
func (s *DisputeService) RequestMediationProposal(ctx context.Context, disputeID, userID uuid.UUID) (*mediation.Proposal, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}

	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}
	if p.CurrentPhase != models.PhaseAIMediation {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("mediation is not available in phase %q", p.CurrentPhase))
	}

	proposal, err := s.mediator.Propose(ctx, s.disputeContext(ctx, d, p.CurrentPhase))
	if err != nil {
		return nil, err
	}
	if err := s.disputes.MarkUnderReview(ctx, disputeID); err != nil {
		logger.Log.WithError(err).WithField("dispute_id", disputeID).Warn("failed to mark dispute under review")
	}
	return proposal, nil
}

// ReviewDecision is the admin step closing phase_3_pending. Approving adopts
// the automated recommendation and resolves through phase_3_ai; escalating
// moves the dispute to phase_3_external for a human arbiter.
func (s *DisputeService) ReviewDecision(ctx context.Context, disputeID uuid.UUID, approve bool) (*DisputeView, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}

	p, err := s.refreshPhase(ctx, d)
	if err != nil {
		return nil, err
	}
	if p.CurrentPhase != models.PhaseDecisionWait {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("dispute is not awaiting a decision, phase is %q", p.CurrentPhase))
	}

	if !approve {
		next := *p
		next.CurrentPhase = models.PhaseDecisionExt
		if err := s.persistAdvance(ctx, &next, p.CurrentPhase); err != nil {
			return nil, err
		}
		s.sink.Notify(d.CustomerID, models.EventDisputePhaseAdvanced, &next)
		s.sink.Notify(d.VendorID, models.EventDisputePhaseAdvanced, &next)
		return &DisputeView{Dispute: d, Phase: &next}, nil
	}

	decision, err := s.decider.Propose(ctx, s.disputeContext(ctx, d, p.CurrentPhase))
	if err != nil {
		return nil, err
	}
	if err := validateOutcome(decision.Outcome, decision.CustomerAmount, d.EscrowAmount); err != nil {
		return nil, err
	}

	next := *p
	next.CurrentPhase = models.PhaseDecisionAI
	if err := s.persistAdvance(ctx, &next, p.CurrentPhase); err != nil {
		return nil, err
	}

	return s.applyOutcome(ctx, d, next.CurrentPhase, decision.Outcome, decision.CustomerAmount, decision.Summary)
}

// ResolveExternal records the ruling of the external arbiter a
// phase_3_external dispute was handed to.
func (s *DisputeService) ResolveExternal(ctx context.Context, disputeID uuid.UUID, outcome string, customerAmount decimal.Decimal, resolution string) (*DisputeView, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}
	if err := validateOutcome(outcome, customerAmount, d.EscrowAmount); err != nil {
		return nil, err
	}

	p, err := s.disputes.GetPhase(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if p.CurrentPhase != models.PhaseDecisionExt {
		return nil, apperror.New(apperror.ErrCodeInvalidState,
			fmt.Sprintf("dispute is not with an external arbiter, phase is %q", p.CurrentPhase))
	}

	return s.applyOutcome(ctx, d, p.CurrentPhase, outcome, customerAmount, resolution)
}

// AddEvidence attaches an uploaded file to an active dispute.
func (s *DisputeService) AddEvidence(ctx context.Context, disputeID, userID uuid.UUID, filePath, fileType string, sizeBytes int64) (*models.DisputeEvidence, error) {
	d, err := s.getParty(ctx, disputeID, userID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "dispute is already resolved")
	}
	e := &models.DisputeEvidence{
		DisputeID:  disputeID,
		UploaderID: userID,
		FilePath:   filePath,
		FileType:   fileType,
		SizeBytes:  sizeBytes,
	}
	if err := s.disputes.AddEvidence(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEvidence returns a dispute's evidence for one of its parties.
func (s *DisputeService) ListEvidence(ctx context.Context, disputeID, userID uuid.UUID) ([]models.DisputeEvidence, error) {
	if _, err := s.getParty(ctx, disputeID, userID); err != nil {
		return nil, err
	}
	return s.disputes.ListEvidence(ctx, disputeID)
}

// refreshPhase loads the phase row and applies at most one lazy deadline
// expiry. A lost race on the persist means another caller advanced the same
// step first, so the re-read state is authoritative.
func (s *DisputeService) refreshPhase(ctx context.Context, d *models.Dispute) (*models.DisputePhase, error) {
	p, err := s.disputes.GetPhase(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if !d.IsActive() {
		return p, nil
	}

	next, advanced := p.AdvanceIfExpired(s.clock(), s.windows.Phase2, s.windows.Phase3)
	if !advanced {
		return p, nil
	}
	if err := s.disputes.AdvancePhase(ctx, &next, p.CurrentPhase); err != nil {
		if errors.Is(err, repository.ErrPhaseChanged) {
			return s.disputes.GetPhase(ctx, d.ID)
		}
		return nil, err
	}

	s.sink.Notify(d.CustomerID, models.EventDisputePhaseAdvanced, &next)
	s.sink.Notify(d.VendorID, models.EventDisputePhaseAdvanced, &next)
	return &next, nil
}

func (s *DisputeService) persistAdvance(ctx context.Context, next *models.DisputePhase, fromPhase string) error {
	if err := s.disputes.AdvancePhase(ctx, next, fromPhase); err != nil {
		if errors.Is(err, repository.ErrPhaseChanged) {
			return apperror.New(apperror.ErrCodeConflict, "dispute phase changed concurrently")
		}
		return err
	}
	return nil
}

// applyOutcome closes the dispute and moves the escrowed money accordingly.
// The resolution is recorded first; if a payment call then fails, the dispute
// stays resolved and the escrow operation is retried, never the other way
// around.
func (s *DisputeService) applyOutcome(ctx context.Context, d *models.Dispute, fromPhase, outcome string, customerAmount decimal.Decimal, resolution string) (*DisputeView, error) {
	resolved, err := s.disputes.Resolve(ctx, d.ID, outcome, resolution, fromPhase)
	if err != nil {
		if errors.Is(err, repository.ErrPhaseChanged) {
			return nil, apperror.New(apperror.ErrCodeConflict, "dispute was resolved concurrently")
		}
		return nil, err
	}

	if resolved.EscrowTxID != nil {
		if err := s.moveEscrow(ctx, resolved, outcome, customerAmount); err != nil {
			logger.Log.WithError(err).WithField("dispute_id", resolved.ID).Error("escrow settlement failed after resolution")
			return &DisputeView{Dispute: resolved}, err
		}
	}

	s.sink.Notify(resolved.CustomerID, models.EventDisputeResolved, resolved)
	s.sink.Notify(resolved.VendorID, models.EventDisputeResolved, resolved)

	p, err := s.disputes.GetPhase(ctx, resolved.ID)
	if err != nil {
		return &DisputeView{Dispute: resolved}, nil
	}
	return &DisputeView{Dispute: resolved, Phase: p}, nil
}

func (s *DisputeService) moveEscrow(ctx context.Context, d *models.Dispute, outcome string, customerAmount decimal.Decimal) error {
	txID := *d.EscrowTxID
	switch outcome {
	case models.DisputeStatusResolvedCustomer:
		_, err := s.escrow.Refund(ctx, txID, d.EscrowAmount)
		return err
	case models.DisputeStatusResolvedVendor:
		_, err := s.escrow.Release(ctx, txID)
		return err
	case models.DisputeStatusResolvedSplit:
		if _, err := s.escrow.Refund(ctx, txID, customerAmount); err != nil {
			return err
		}
		_, err := s.escrow.Release(ctx, txID)
		return err
	}
	return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("unknown outcome %q", outcome))
}

func (s *DisputeService) disputeContext(ctx context.Context, d *models.Dispute, phase string) mediation.DisputeContext {
	dc := mediation.DisputeContext{
		DisputeID:    d.ID.String(),
		Reason:       d.Reason,
		Description:  d.Description,
		EscrowAmount: d.EscrowAmount,
		Phase:        phase,
	}
	if evidence, err := s.disputes.ListEvidence(ctx, d.ID); err == nil {
		for _, e := range evidence {
			dc.Evidence = append(dc.Evidence, fmt.Sprintf("%s (%s, %d bytes)", e.FilePath, e.FileType, e.SizeBytes))
		}
	}
	return dc
}

func (s *DisputeService) getParty(ctx context.Context, disputeID, userID uuid.UUID) (*models.Dispute, error) {
	d, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if d.CustomerID != userID && d.VendorID != userID {
		return nil, apperror.ErrForbidden
	}
	return d, nil
}

func (s *DisputeService) counterparty(d *models.Dispute, userID uuid.UUID) uuid.UUID {
	if userID == d.CustomerID {
		return d.VendorID
	}
	return d.CustomerID
}

func validateOutcome(outcome string, customerAmount, escrowAmount decimal.Decimal) error {
	switch outcome {
	case models.DisputeStatusResolvedCustomer, models.DisputeStatusResolvedVendor:
		return nil
	case models.DisputeStatusResolvedSplit:
		if customerAmount.LessThanOrEqual(decimal.Zero) || customerAmount.GreaterThanOrEqual(escrowAmount) {
			return apperror.New(apperror.ErrCodeValidation,
				fmt.Sprintf("split amount must be strictly between 0 and %s", escrowAmount))
		}
		return nil
	}
	return apperror.New(apperror.ErrCodeValidation, fmt.Sprintf("unknown outcome %q", outcome))
}
