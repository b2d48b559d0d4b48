package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/application/dispatcher"
	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/event"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/repository"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-claims/pkg/database"
)

func upiInfo() *entity.ReimbursementInfo {
	return &entity.ReimbursementInfo{Method: entity.MethodUPI, UPIID: "asha@okbank", Remarks: "March trip"}
}

type payoutFixture struct {
	engine  *MockEngine
	gateway *MockGateway
	claims  *mockClaimRepo
	payouts *mockPayoutRepo
	svc     PayoutService
}

func newPayoutFixture(d dispatcher.Dispatcher, claims ...*entity.Claim) *payoutFixture {
	f := &payoutFixture{
		engine:  new(MockEngine),
		gateway: new(MockGateway),
		claims:  newMockClaimRepo(claims...),
		payouts: &mockPayoutRepo{},
	}
	f.svc = NewPayoutService(f.engine, f.claims, f.payouts, f.gateway, d, nil)
	return f
}

func TestPayoutService_ProcessPaymentSuccess(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	ctx := context.Background()

	f.gateway.On("SubmitPayout", mock.Anything, mock.MatchedBy(func(r *entity.PayoutRequest) bool {
		return r.Reference == "c-1" &&
			r.UPIID == "asha@okbank" &&
			r.Amount.Equal(decimal.RequireFromString("5250.50"))
	})).Return(&entity.PayoutResult{Success: true, TransferID: "claim_1700000000000"}, nil).Once()

	paid := &entity.Claim{ID: "c-1", Status: entity.StatusPaid}
	f.engine.On("MarkPaid", mock.Anything, office, "c-1", reimbursement.Confirmation{
		PaymentMethod: "UPI",
		TransactionID: "claim_1700000000000",
		Remarks:       "paid via UPI",
	}).Return(paid, nil).Once()

	got, err := f.svc.ProcessPayment(ctx, office, "c-1", "paid via UPI")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, got.Status)

	require.Len(t, f.payouts.attempts, 1)
	assert.Equal(t, entity.PayoutStatusConfirmed, f.payouts.attempts[0].Status)
	assert.Equal(t, "claim_1700000000000", f.payouts.attempts[0].TransferID)
	assert.Equal(t, office.ID(), f.payouts.attempts[0].RequestedBy)

	f.gateway.AssertExpectations(t)
	f.engine.AssertExpectations(t)
}

func TestPayoutService_ProcessPaymentGatewayFailure(t *testing.T) {
	d := dispatcher.NewDispatcher()
	defer d.Close()

	var mu sync.Mutex
	var failures []*event.Event
	d.Subscribe(event.TypePayoutFailed, func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, evt)
		return nil
	})

	f := newPayoutFixture(d, requestedClaim("c-1", upiInfo()))
	ctx := workflow.WithCorrelationID(context.Background(), "req-9")

	f.gateway.On("SubmitPayout", mock.Anything, mock.Anything).
		Return(&entity.PayoutResult{Success: false, Message: "beneficiary bank offline"}, nil).Once()

	_, err := f.svc.ProcessPayment(ctx, office, "c-1", "")
	assert.True(t, errors.Is(err, apperr.ErrUpstreamPayout))
	assert.Contains(t, err.Error(), "beneficiary bank offline")

	require.Len(t, f.payouts.attempts, 1)
	assert.Equal(t, entity.PayoutStatusFailed, f.payouts.attempts[0].Status)
	assert.Equal(t, "beneficiary bank offline", f.payouts.attempts[0].Error)

	stored, _ := f.claims.GetByID(ctx, "c-1")
	assert.Equal(t, entity.StatusReimbursementRequested, stored.Status)
	f.engine.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, time.Second, 10*time.Millisecond)
	mu.Lock()
	assert.Equal(t, "c-1", failures[0].ClaimID)
	assert.Equal(t, "req-9", failures[0].CorrelationID)
	mu.Unlock()
}

func TestPayoutService_ProcessPaymentTransportError(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))

	f.gateway.On("SubmitPayout", mock.Anything, mock.Anything).
		Return(nil, context.DeadlineExceeded).Once()

	_, err := f.svc.ProcessPayment(context.Background(), office, "c-1", "")
	assert.True(t, errors.Is(err, apperr.ErrUpstreamPayout))
	assert.Equal(t, entity.PayoutStatusFailed, f.payouts.attempts[0].Status)
	assert.Equal(t, "payout provider timed out", f.payouts.attempts[0].Error)
}

func TestPayoutService_ProcessPaymentPreconditions(t *testing.T) {
	approved := requestedClaim("approved", nil)
	approved.Status = entity.StatusApproved
	badUPI := requestedClaim("bad-upi", &entity.ReimbursementInfo{Method: entity.MethodUPI, UPIID: "not-a-upi"})
	cash := requestedClaim("cash", &entity.ReimbursementInfo{Method: entity.MethodCash})

	f := newPayoutFixture(nil, approved, badUPI, cash, requestedClaim("ok", upiInfo()))
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   entity.Actor
		claimID string
		want    error
	}{
		{"unknown claim", office, "missing", apperr.ErrNotFound},
		{"not office", hr, "ok", apperr.ErrForbidden},
		{"wrong state", office, "approved", apperr.ErrInvalidState},
		{"malformed upi", office, "bad-upi", apperr.ErrValidation},
		{"cash is offline", office, "cash", apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ProcessPayment(ctx, tt.actor, tt.claimID, "")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.Empty(t, f.payouts.attempts)
	f.gateway.AssertNotCalled(t, "SubmitPayout", mock.Anything, mock.Anything)
}

func TestPayoutService_ProcessPaymentReusesConfirmedAttempt(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{
		{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusFailed, Error: "timeout"},
		{ID: 2, ClaimID: "c-1", Status: entity.PayoutStatusConfirmed, TransferID: "claim_42"},
	}

	f.engine.On("MarkPaid", mock.Anything, office, "c-1", mock.MatchedBy(func(c reimbursement.Confirmation) bool {
		return c.TransactionID == "claim_42"
	})).Return(&entity.Claim{ID: "c-1", Status: entity.StatusPaid}, nil).Once()

	got, err := f.svc.ProcessPayment(context.Background(), office, "c-1", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, got.Status)
	f.gateway.AssertNotCalled(t, "SubmitPayout", mock.Anything, mock.Anything)
}

func TestPayoutService_ProcessPaymentInFlightConflict(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{
		{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusRequested},
	}

	_, err := f.svc.ProcessPayment(context.Background(), office, "c-1", "")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

// gatedPayoutRepo holds every caller after its attempt-log read until all
// expected callers have read, so they race on the insert.
type gatedPayoutRepo struct {
	port.PayoutRepository
	reads *sync.WaitGroup
}

func (r *gatedPayoutRepo) GetByClaimID(ctx context.Context, claimID string) ([]*entity.PayoutAttempt, error) {
	attempts, err := r.PayoutRepository.GetByClaimID(ctx, claimID)
	r.reads.Done()
	r.reads.Wait()
	return attempts, err
}

func TestPayoutService_ProcessPaymentConcurrentCallersPayOnce(t *testing.T) {
	logger := zap.NewNop()
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "claims.db"), MaxOpenConns: 1}
	require.NoError(t, database.Migrate(cfg, logger))
	sqlDB, err := database.Open(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	db := sqlite.NewDB(sqlDB, logger)

	claimRepo := repository.NewClaimRepository(db, logger)
	historyRepo := repository.NewHistoryRepository(db, logger)
	ctx := context.Background()
	seed := requestedClaim("c-1", upiInfo())
	seed.CreatedAt = time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	seed.UpdatedAt = seed.CreatedAt
	require.NoError(t, claimRepo.Create(ctx, seed))

	const callers = 2
	var reads sync.WaitGroup
	reads.Add(callers)
	payouts := &gatedPayoutRepo{PayoutRepository: repository.NewPayoutRepository(db, logger), reads: &reads}

	gateway := new(MockGateway)
	gateway.On("SubmitPayout", mock.Anything, mock.Anything).
		Return(&entity.PayoutResult{Success: true, TransferID: "claim_1"}, nil)

	engine := workflow.NewEngine(claimRepo, historyRepo, db)
	svc := NewPayoutService(engine, claimRepo, payouts, gateway, nil, nil)

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ProcessPayment(ctx, office, "c-1", "")
		}(i)
	}
	wg.Wait()

	gateway.AssertNumberOfCalls(t, "SubmitPayout", 1)

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, apperr.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := claimRepo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, stored.Status)
	assert.Equal(t, "claim_1", stored.ReimbursementInfo.TransactionID)

	attempts, err := payouts.PayoutRepository.GetByClaimID(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.PayoutStatusConfirmed, attempts[0].Status)
}

func TestPayoutService_SettleAttemptPreconditions(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{
		{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusFailed},
		{ID: 2, ClaimID: "c-1", Status: entity.PayoutStatusRequested},
	}
	ctx := context.Background()

	tests := []struct {
		name      string
		actor     entity.Actor
		claimID   string
		attemptID int64
		outcome   AttemptOutcome
		want      error
	}{
		{"not office", hr, "c-1", 2, AttemptOutcome{}, apperr.ErrForbidden},
		{"confirm without transfer id", office, "c-1", 2, AttemptOutcome{Confirmed: true}, apperr.ErrValidation},
		{"unknown claim", office, "missing", 2, AttemptOutcome{}, apperr.ErrNotFound},
		{"unknown attempt", office, "c-1", 9, AttemptOutcome{}, apperr.ErrNotFound},
		{"already settled", office, "c-1", 1, AttemptOutcome{}, apperr.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SettleAttempt(ctx, tt.actor, tt.claimID, tt.attemptID, tt.outcome)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Equal(t, entity.PayoutStatusRequested, f.payouts.attempts[1].Status)
}

func TestPayoutService_SettleAttemptFailedUnblocksPayment(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusRequested}}
	ctx := context.Background()

	_, err := f.svc.ProcessPayment(ctx, office, "c-1", "")
	require.True(t, errors.Is(err, apperr.ErrConflict))

	claim, err := f.svc.SettleAttempt(ctx, office, "c-1", 1, AttemptOutcome{Reason: "provider has no record"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReimbursementRequested, claim.Status)
	assert.Equal(t, entity.PayoutStatusFailed, f.payouts.attempts[0].Status)
	assert.Equal(t, "provider has no record", f.payouts.attempts[0].Error)
	f.engine.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	f.gateway.On("SubmitPayout", mock.Anything, mock.Anything).
		Return(&entity.PayoutResult{Success: true, TransferID: "claim_2"}, nil).Once()
	f.engine.On("MarkPaid", mock.Anything, office, "c-1", mock.Anything).
		Return(&entity.Claim{ID: "c-1", Status: entity.StatusPaid}, nil).Once()

	paid, err := f.svc.ProcessPayment(ctx, office, "c-1", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, paid.Status)
	assert.Len(t, f.payouts.attempts, 2)
}

func TestPayoutService_SettleAttemptConfirmedMarksPaid(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusRequested}}

	f.engine.On("MarkPaid", mock.Anything, office, "c-1", reimbursement.Confirmation{
		PaymentMethod: "UPI",
		TransactionID: "claim_77",
		Remarks:       "reconciled",
	}).Return(&entity.Claim{ID: "c-1", Status: entity.StatusPaid}, nil).Once()

	paid, err := f.svc.SettleAttempt(context.Background(), office, "c-1", 1,
		AttemptOutcome{Confirmed: true, TransferID: " claim_77 ", Remarks: "reconciled"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, paid.Status)
	assert.Equal(t, entity.PayoutStatusConfirmed, f.payouts.attempts[0].Status)
	assert.Equal(t, "claim_77", f.payouts.attempts[0].TransferID)
	f.gateway.AssertNotCalled(t, "SubmitPayout", mock.Anything, mock.Anything)
	f.engine.AssertExpectations(t)
}

func TestPayoutService_DirectPayout(t *testing.T) {
	f := newPayoutFixture(nil)
	ctx := context.Background()
	req := &entity.PayoutRequest{
		Reference: "c-9",
		Name:      "Asha Rao",
		Amount:    decimal.RequireFromString("100"),
		Method:    entity.MethodUPI,
		UPIID:     "asha@okbank",
	}

	_, err := f.svc.DirectPayout(ctx, hr, req)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = f.svc.DirectPayout(ctx, office, &entity.PayoutRequest{Amount: decimal.Zero})
	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 3)

	f.gateway.On("SubmitPayout", mock.Anything, req).
		Return(&entity.PayoutResult{Success: true, TransferID: "claim_7"}, nil).Once()
	res, err := f.svc.DirectPayout(ctx, office, req)
	require.NoError(t, err)
	assert.Equal(t, "claim_7", res.TransferID)
}

func TestPayoutService_Attempts(t *testing.T) {
	f := newPayoutFixture(nil, requestedClaim("c-1", upiInfo()))
	f.payouts.attempts = []*entity.PayoutAttempt{{ID: 1, ClaimID: "c-1", Status: entity.PayoutStatusFailed}}

	_, err := f.svc.Attempts(context.Background(), employee, "c-1")
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	attempts, err := f.svc.Attempts(context.Background(), office, "c-1")
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}
