package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-claims/internal/application/dispatcher"
	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/event"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
	domainwf "github.com/garyjia/travel-claims/internal/domain/workflow"
)

// PayoutService moves money for reimbursement-requested claims
type PayoutService interface {
	// ProcessPayment pays the claim total through the payout collaborator and,
	// on success, marks the claim paid with the returned transfer id (office).
	// A failed payout leaves the claim in ReimbursementRequested.
	ProcessPayment(ctx context.Context, actor entity.Actor, claimID, remarks string) (*entity.Claim, error)

	// DirectPayout hands a request straight to the payout collaborator (office)
	DirectPayout(ctx context.Context, actor entity.Actor, req *entity.PayoutRequest) (*entity.PayoutResult, error)

	// SettleAttempt closes a REQUESTED attempt left open by an interrupted payment
	// (office). A confirmed outcome marks the claim paid with the provider's
	// transfer id; a failed one lets ProcessPayment run again.
	SettleAttempt(ctx context.Context, actor entity.Actor, claimID string, attemptID int64, outcome AttemptOutcome) (*entity.Claim, error)

	// Attempts returns the payout log of a claim (staff only)
	Attempts(ctx context.Context, actor entity.Actor, claimID string) ([]*entity.PayoutAttempt, error)
}

// AttemptOutcome is the office's reconciliation of an open payout attempt
type AttemptOutcome struct {
	Confirmed  bool
	TransferID string
	Reason     string
	Remarks    string
}

type payoutServiceImpl struct {
	engine     workflow.WorkflowEngine
	claimRepo  port.ClaimRepository
	payoutRepo port.PayoutRepository
	gateway    port.PayoutGateway
	dispatcher dispatcher.Dispatcher
	logger     Logger
}

// NewPayoutService creates a new PayoutService. The dispatcher may be nil.
func NewPayoutService(
	engine workflow.WorkflowEngine,
	claimRepo port.ClaimRepository,
	payoutRepo port.PayoutRepository,
	gateway port.PayoutGateway,
	d dispatcher.Dispatcher,
	logger Logger,
) PayoutService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &payoutServiceImpl{
		engine:     engine,
		claimRepo:  claimRepo,
		payoutRepo: payoutRepo,
		gateway:    gateway,
		dispatcher: d,
		logger:     logger,
	}
}

func (s *payoutServiceImpl) ProcessPayment(ctx context.Context, actor entity.Actor, claimID, remarks string) (*entity.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := domainwf.Authorize(actor, claim, domainwf.TriggerMarkPaid); err != nil {
		return nil, err
	}
	if claim.Status != entity.StatusReimbursementRequested {
		return nil, fmt.Errorf("%w: claim is %q, payment needs a reimbursement request", apperr.ErrInvalidState, claim.Status)
	}
	if err := reimbursement.ValidateForPayout(claim.ReimbursementInfo); err != nil {
		return nil, err
	}

	attempts, err := s.payoutRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	for _, a := range attempts {
		switch a.Status {
		case entity.PayoutStatusRequested:
			return nil, fmt.Errorf("%w: payout %d for claim %s is still in flight and must be settled first", apperr.ErrConflict, a.ID, claimID)
		case entity.PayoutStatusConfirmed:
			// money already moved on an earlier call; finish the bookkeeping only
			s.logger.Warn("Completing claim from earlier confirmed payout",
				"claim_id", claimID, "transfer_id", a.TransferID)
			return s.markPaid(ctx, actor, claim, a.TransferID, remarks)
		}
	}

	info := claim.ReimbursementInfo
	req := &entity.PayoutRequest{
		Reference: claim.ID,
		Name:      claim.EmployeeName,
		Amount:    claim.TotalAmount(),
		Method:    info.Method,
		UPIID:     info.UPIID,
	}
	if info.BankDetails != nil {
		bd := *info.BankDetails
		req.BankDetails = &bd
	}

	attempt := &entity.PayoutAttempt{
		ClaimID:     claim.ID,
		Method:      req.Method,
		Amount:      req.Amount,
		Beneficiary: payoutBeneficiary(req),
		Status:      entity.PayoutStatusRequested,
		RequestedBy: actor.ID(),
	}
	if err := s.payoutRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	result, err := s.gateway.SubmitPayout(ctx, req)
	if err != nil || result == nil || !result.Success {
		reason := failureReason(result, err)
		if settleErr := s.payoutRepo.Settle(context.WithoutCancel(ctx), attempt.ID, entity.PayoutStatusFailed, "", reason); settleErr != nil {
			s.logger.Error("Failed to record failed payout", "claim_id", claim.ID, "attempt_id", attempt.ID, "error", settleErr)
		}
		s.logger.Error("Payout failed", "claim_id", claim.ID, "attempt_id", attempt.ID, "reason", reason)
		s.emitFailure(ctx, actor, claim, req, reason)
		return nil, fmt.Errorf("%w: %s", apperr.ErrUpstreamPayout, reason)
	}

	if err := s.payoutRepo.Settle(context.WithoutCancel(ctx), attempt.ID, entity.PayoutStatusConfirmed, result.TransferID, ""); err != nil {
		s.logger.Error("Failed to record confirmed payout", "claim_id", claim.ID, "attempt_id", attempt.ID,
			"transfer_id", result.TransferID, "error", err)
	}

	s.logger.Info("Payout confirmed", "claim_id", claim.ID, "transfer_id", result.TransferID,
		"amount", req.Amount.StringFixed(2))

	return s.markPaid(ctx, actor, claim, result.TransferID, remarks)
}

func (s *payoutServiceImpl) markPaid(ctx context.Context, actor entity.Actor, claim *entity.Claim, transferID, remarks string) (*entity.Claim, error) {
	paid, err := s.engine.MarkPaid(ctx, actor, claim.ID, reimbursement.Confirmation{
		PaymentMethod: claim.ReimbursementInfo.Method.String(),
		TransactionID: transferID,
		Remarks:       remarks,
	})
	if err != nil {
		s.logger.Error("Payout confirmed but claim not marked paid",
			"claim_id", claim.ID, "transfer_id", transferID, "error", err)
		return nil, err
	}
	return paid, nil
}

func (s *payoutServiceImpl) SettleAttempt(ctx context.Context, actor entity.Actor, claimID string, attemptID int64, outcome AttemptOutcome) (*entity.Claim, error) {
	if actor.Role != entity.RoleOffice {
		return nil, fmt.Errorf("%w: role %q may not settle payouts", apperr.ErrForbidden, actor.Role)
	}
	transferID := strings.TrimSpace(outcome.TransferID)
	if outcome.Confirmed && transferID == "" {
		return nil, apperr.NewValidationError("transferId", "is required to confirm a payout")
	}

	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.payoutRepo.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	var open *entity.PayoutAttempt
	for _, a := range attempts {
		if a.ID == attemptID {
			open = a
			break
		}
	}
	if open == nil {
		return nil, fmt.Errorf("%w: payout attempt %d for claim %s", apperr.ErrNotFound, attemptID, claimID)
	}
	if open.Status != entity.PayoutStatusRequested {
		return nil, fmt.Errorf("%w: payout attempt %d is already %s", apperr.ErrInvalidState, attemptID, open.Status)
	}

	if !outcome.Confirmed {
		reason := strings.TrimSpace(outcome.Reason)
		if reason == "" {
			reason = "closed by office"
		}
		if err := s.payoutRepo.Settle(ctx, attemptID, entity.PayoutStatusFailed, "", reason); err != nil {
			return nil, err
		}
		s.logger.Warn("Open payout settled as failed", "claim_id", claimID, "attempt_id", attemptID,
			"actor_id", actor.ID(), "reason", reason)
		return claim, nil
	}

	if err := s.payoutRepo.Settle(ctx, attemptID, entity.PayoutStatusConfirmed, transferID, ""); err != nil {
		return nil, err
	}
	s.logger.Warn("Open payout settled as confirmed", "claim_id", claimID, "attempt_id", attemptID,
		"actor_id", actor.ID(), "transfer_id", transferID)

	// a manual mark-paid may already have closed the claim
	if claim.Status != entity.StatusReimbursementRequested || claim.ReimbursementInfo == nil {
		return claim, nil
	}
	return s.markPaid(ctx, actor, claim, transferID, outcome.Remarks)
}

func (s *payoutServiceImpl) DirectPayout(ctx context.Context, actor entity.Actor, req *entity.PayoutRequest) (*entity.PayoutResult, error) {
	if actor.Role != entity.RoleOffice {
		return nil, fmt.Errorf("%w: role %q may not process payouts", apperr.ErrForbidden, actor.Role)
	}
	if req == nil {
		return nil, apperr.NewValidationError("payout", "is required")
	}

	verr := &apperr.ValidationError{}
	if strings.TrimSpace(req.Name) == "" {
		verr.Add("name", "is required")
	}
	if !req.Amount.IsPositive() {
		verr.Add("amount", "must be positive")
	}
	if req.UPIID == "" && req.BankDetails == nil {
		verr.Add("upiId", "UPI ID or bank details are required")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	result, err := s.gateway.SubmitPayout(ctx, req)
	if err != nil || result == nil || !result.Success {
		reason := failureReason(result, err)
		s.logger.Error("Direct payout failed", "reference", req.Reference, "reason", reason)
		return nil, fmt.Errorf("%w: %s", apperr.ErrUpstreamPayout, reason)
	}

	s.logger.Info("Direct payout confirmed", "reference", req.Reference, "transfer_id", result.TransferID)
	return result, nil
}

func (s *payoutServiceImpl) Attempts(ctx context.Context, actor entity.Actor, claimID string) ([]*entity.PayoutAttempt, error) {
	if !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: role %q may not read payouts", apperr.ErrForbidden, actor.Role)
	}
	if _, err := s.claimRepo.GetByID(ctx, claimID); err != nil {
		return nil, err
	}
	return s.payoutRepo.GetByClaimID(ctx, claimID)
}

func (s *payoutServiceImpl) emitFailure(ctx context.Context, actor entity.Actor, claim *entity.Claim, req *entity.PayoutRequest, reason string) {
	if s.dispatcher == nil {
		return
	}
	payload := map[string]interface{}{
		"reason":      reason,
		"amount":      req.Amount.StringFixed(2),
		"method":      req.Method.String(),
		"employee_id": claim.EmployeeID,
		"status":      claim.Status.String(),
	}
	evt := event.NewEventWithCorrelation(event.TypePayoutFailed, claim.ID, actor.ID(), payload, workflow.CorrelationID(ctx))
	s.dispatcher.DispatchAsync(ctx, evt)
}

func failureReason(result *entity.PayoutResult, err error) string {
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return "payout provider timed out"
	case err != nil:
		return err.Error()
	case result == nil:
		return "empty payout response"
	case result.Message != "":
		return result.Message
	default:
		return "payout rejected"
	}
}

func payoutBeneficiary(req *entity.PayoutRequest) string {
	if req.UPIID != "" {
		return req.UPIID
	}
	if req.BankDetails != nil {
		return req.BankDetails.AccountHolderName + " " + req.BankDetails.AccountNumber
	}
	return ""
}
