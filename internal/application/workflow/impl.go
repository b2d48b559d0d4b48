package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/travel-claims/internal/application/dispatcher"
	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/event"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
	domainwf "github.com/garyjia/travel-claims/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type correlationKey struct{}

// WithCorrelationID tags events emitted while handling ctx with the given id
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or ""
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

var triggerEvents = map[domainwf.Trigger]event.Type{
	domainwf.TriggerSubmit:               event.TypeClaimSubmitted,
	domainwf.TriggerForward:              event.TypeClaimForwarded,
	domainwf.TriggerApprove:              event.TypeClaimApproved,
	domainwf.TriggerReject:               event.TypeClaimRejected,
	domainwf.TriggerRequestReimbursement: event.TypeReimbursementRequested,
	domainwf.TriggerMarkPaid:             event.TypeClaimPaid,
	domainwf.TriggerOverride:             event.TypeStatusOverridden,
}

type engineImpl struct {
	claimRepo   port.ClaimRepository
	historyRepo port.HistoryRepository
	txManager   port.TransactionManager
	dispatcher  dispatcher.Dispatcher
	logger      Logger
	now         func() time.Time
	newID       func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides the claim id generator
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = gen
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	claimRepo port.ClaimRepository,
	historyRepo port.HistoryRepository,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		claimRepo:   claimRepo,
		historyRepo: historyRepo,
		txManager:   txManager,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *engineImpl) Submit(ctx context.Context, actor entity.Actor, draft *entity.Claim) (*entity.Claim, error) {
	if draft == nil {
		return nil, apperr.NewValidationError("claim", "is required")
	}
	if err := domainwf.Authorize(actor, draft, domainwf.TriggerSubmit); err != nil {
		return nil, err
	}
	if draft.EmployeeID != "" && draft.EmployeeID != actor.EmployeeID {
		return nil, fmt.Errorf("%w: claims can only be submitted for your own employee id", apperr.ErrForbidden)
	}

	claim := draft.Clone()
	claim.EmployeeID = actor.EmployeeID
	if err := validateSubmission(claim); err != nil {
		return nil, err
	}

	now := e.now()
	if claim.ID == "" {
		claim.ID = e.newID()
	}
	claim.Status = entity.StatusPending
	claim.ReimbursementRequested = false
	claim.ReimbursementRequestedAt = nil
	claim.PaidAt = nil
	claim.PaymentMode = nil
	claim.ReimbursementInfo = nil
	claim.Revision = 1
	claim.CreatedAt = now
	claim.UpdatedAt = now

	history := &entity.ClaimHistory{
		ClaimID:        claim.ID,
		ActorID:        actor.ID(),
		ActorRole:      actor.Role,
		PreviousStatus: "",
		NewStatus:      claim.Status.String(),
		ActionType:     entity.ActionSubmit,
		ActionData:     actionData(map[string]interface{}{"expenses": len(claim.Expenses), "total": claim.TotalAmount().String()}),
		Timestamp:      now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.claimRepo.Create(txCtx, claim); err != nil {
			return fmt.Errorf("failed to create claim: %w", err)
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.info("Claim submitted", "claim_id", claim.ID, "employee_id", claim.EmployeeID, "total", claim.TotalAmount().String())
	e.emit(ctx, domainwf.TriggerSubmit, actor, "", claim, nil)
	return claim, nil
}

func (e *engineImpl) Forward(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error) {
	return e.transition(ctx, actor, claimID, domainwf.TriggerForward, entity.ActionForward, commentData(comment), nil)
}

func (e *engineImpl) Approve(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error) {
	return e.transition(ctx, actor, claimID, domainwf.TriggerApprove, entity.ActionApprove, commentData(comment), nil)
}

func (e *engineImpl) Reject(ctx context.Context, actor entity.Actor, claimID, reason string) (*entity.Claim, error) {
	data := map[string]interface{}{}
	if reason = strings.TrimSpace(reason); reason != "" {
		data["reason"] = reason
	}
	return e.transition(ctx, actor, claimID, domainwf.TriggerReject, entity.ActionReject, data, nil)
}

func (e *engineImpl) RequestReimbursement(ctx context.Context, actor entity.Actor, claimID string, req reimbursement.Request) (*entity.Claim, error) {
	data := map[string]interface{}{}
	return e.transition(ctx, actor, claimID, domainwf.TriggerRequestReimbursement, entity.ActionRequestReimbursement, data,
		func(current, next *entity.Claim, now time.Time) error {
			info, err := reimbursement.Capture(current, req)
			if err != nil {
				return err
			}
			next.ReimbursementInfo = info
			next.ReimbursementRequested = true
			if next.ReimbursementRequestedAt == nil {
				next.ReimbursementRequestedAt = &now
			}
			data["method"] = info.Method.String()
			return nil
		})
}

func (e *engineImpl) MarkPaid(ctx context.Context, actor entity.Actor, claimID string, c reimbursement.Confirmation) (*entity.Claim, error) {
	claim, err := e.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := domainwf.Authorize(actor, claim, domainwf.TriggerMarkPaid); err != nil {
		return nil, err
	}

	if claim.Status == entity.StatusPaid {
		txID := strings.TrimSpace(c.TransactionID)
		if txID != "" && claim.ReimbursementInfo != nil && claim.ReimbursementInfo.TransactionID == txID {
			e.info("Mark-paid replay ignored", "claim_id", claim.ID, "transaction_id", txID)
			return claim, nil
		}
	}

	data := map[string]interface{}{}
	return e.apply(ctx, actor, claim, domainwf.TriggerMarkPaid, entity.ActionMarkPaid, data,
		func(current, next *entity.Claim, now time.Time) error {
			info, mode, err := reimbursement.Confirm(current.ReimbursementInfo, c)
			if err != nil {
				return err
			}
			next.ReimbursementInfo = info
			next.PaymentMode = &mode
			if next.PaidAt == nil {
				next.PaidAt = &now
			}
			data["transaction_id"] = info.TransactionID
			data["payment_mode"] = string(mode)
			return nil
		})
}

func (e *engineImpl) OverrideStatus(ctx context.Context, actor entity.Actor, claimID string, status entity.ClaimStatus, reason string) (*entity.Claim, error) {
	if !status.IsValid() {
		return nil, apperr.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	claim, err := e.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := domainwf.Authorize(actor, claim, domainwf.TriggerOverride); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: claim is %q and cannot be overridden", apperr.ErrInvalidState, claim.Status)
	}

	now := e.now()
	next := claim.Clone()
	next.Status = status
	next.UpdatedAt = now
	next.Revision = claim.Revision + 1

	data := map[string]interface{}{"override": true}
	if reason = strings.TrimSpace(reason); reason != "" {
		data["reason"] = reason
	}

	if err := e.commit(ctx, actor, claim, next, entity.ActionAdminOverride, data, now); err != nil {
		return nil, err
	}

	e.warn("Claim status overridden",
		"claim_id", claim.ID,
		"actor_id", actor.ID(),
		"actor_role", actor.Role,
		"from", claim.Status,
		"to", status,
	)
	e.emit(ctx, domainwf.TriggerOverride, actor, claim.Status, next, data)
	return next, nil
}

// mutation computes the fields of next that the trigger changes. current is the stored snapshot.
type mutation func(current, next *entity.Claim, now time.Time) error

func (e *engineImpl) transition(ctx context.Context, actor entity.Actor, claimID string, trigger domainwf.Trigger, action string, data map[string]interface{}, mutate mutation) (*entity.Claim, error) {
	claim, err := e.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if err := domainwf.Authorize(actor, claim, trigger); err != nil {
		return nil, err
	}
	return e.apply(ctx, actor, claim, trigger, action, data, mutate)
}

// apply runs an authorized trigger against a loaded claim
func (e *engineImpl) apply(ctx context.Context, actor entity.Actor, claim *entity.Claim, trigger domainwf.Trigger, action string, data map[string]interface{}, mutate mutation) (*entity.Claim, error) {
	machine := BuildClaimStateMachine(claim)
	if err := machine.Fire(ctx, trigger); err != nil {
		return nil, fmt.Errorf("claim %s: %w", claim.ID, err)
	}

	now := e.now()
	next := claim.Clone()
	if mutate != nil {
		if err := mutate(claim, next, now); err != nil {
			return nil, err
		}
	}
	next.Status = machine.State()
	next.UpdatedAt = now
	next.Revision = claim.Revision + 1

	if err := e.commit(ctx, actor, claim, next, action, data, now); err != nil {
		return nil, err
	}

	e.info("Claim transitioned",
		"claim_id", claim.ID,
		"trigger", trigger,
		"from", claim.Status,
		"to", next.Status,
		"actor_id", actor.ID(),
		"revision", next.Revision,
	)
	e.emit(ctx, trigger, actor, claim.Status, next, data)
	return next, nil
}

// commit writes the new claim state and its history row atomically
func (e *engineImpl) commit(ctx context.Context, actor entity.Actor, prev, next *entity.Claim, action string, data map[string]interface{}, now time.Time) error {
	history := &entity.ClaimHistory{
		ClaimID:        next.ID,
		ActorID:        actor.ID(),
		ActorRole:      actor.Role,
		PreviousStatus: prev.Status.String(),
		NewStatus:      next.Status.String(),
		ActionType:     action,
		ActionData:     actionData(data),
		Timestamp:      now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.claimRepo.Update(txCtx, next, prev.Revision); err != nil {
			return fmt.Errorf("failed to update claim: %w", err)
		}
		if err := e.historyRepo.Create(txCtx, history); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}
		return nil
	})
	if err != nil && !errors.Is(err, apperr.ErrConflict) && !errors.Is(err, apperr.ErrNotFound) {
		e.error("Claim commit failed", "claim_id", next.ID, "action", action, "error", err)
	}
	return err
}

func (e *engineImpl) emit(ctx context.Context, trigger domainwf.Trigger, actor entity.Actor, from entity.ClaimStatus, claim *entity.Claim, data map[string]interface{}) {
	if e.dispatcher == nil {
		return
	}
	eventType, ok := triggerEvents[trigger]
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"previous_status": from.String(),
		"new_status":      claim.Status.String(),
		"trigger":         trigger.String(),
		"actor_role":      string(actor.Role),
		"employee_id":     claim.EmployeeID,
		"revision":        claim.Revision,
	}
	for k, v := range data {
		payload[k] = v
	}

	e.dispatcher.DispatchAsync(ctx, event.NewEventWithCorrelation(eventType, claim.ID, actor.ID(), payload, CorrelationID(ctx)))
}

func commentData(comment string) map[string]interface{} {
	data := map[string]interface{}{}
	if comment = strings.TrimSpace(comment); comment != "" {
		data["comment"] = comment
	}
	return data
}

func actionData(data map[string]interface{}) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

func (e *engineImpl) info(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, kv...)
	}
}

func (e *engineImpl) warn(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Warn(msg, kv...)
	}
}

func (e *engineImpl) error(msg string, kv ...interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, kv...)
	}
}
