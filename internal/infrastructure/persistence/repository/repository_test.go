package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/travel-claims/pkg/database"
)

func setupDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "claims.db"), MaxOpenConns: 1}

	require.NoError(t, database.Migrate(cfg, logger))
	sqlDB, err := database.Open(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return sqlite.NewDB(sqlDB, logger)
}

func sampleClaim(id, employeeID string, created time.Time) *entity.Claim {
	return &entity.Claim{
		ID:           id,
		EmployeeID:   employeeID,
		EmployeeName: "Asha Rao",
		Department:   "Sales",
		Company:      "Acme",
		TravelFrom:   "Pune",
		TravelTo:     "Delhi",
		Purpose:      "Client visit",
		TravelDate:   created.Add(24 * time.Hour),
		ReturnDate:   created.Add(72 * time.Hour),
		Expenses: []entity.Expense{
			{Type: entity.ExpenseTypeTravel, Amount: decimal.RequireFromString("4500.50"), Description: "Flight"},
			{Type: entity.ExpenseTypeMeal, Amount: decimal.RequireFromString("820"), Description: "Dinner", ReceiptPath: "claims/" + id + "/receipt_1.pdf"},
		},
		Status:    entity.StatusPending,
		Revision:  1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestClaimRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewClaimRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	claim := sampleClaim("c-1", "E100", now)
	require.NoError(t, repo.Create(ctx, claim))

	got, err := repo.GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "E100", got.EmployeeID)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, int64(1), got.Revision)
	assert.True(t, got.TravelDate.Equal(claim.TravelDate))
	assert.Nil(t, got.ReimbursementInfo)
	assert.Nil(t, got.PaymentMode)
	assert.Nil(t, got.PaidAt)

	require.Len(t, got.Expenses, 2)
	assert.Equal(t, "Flight", got.Expenses[0].Description)
	assert.True(t, got.Expenses[0].Amount.Equal(decimal.RequireFromString("4500.50")))
	assert.Equal(t, "claims/c-1/receipt_1.pdf", got.Expenses[1].ReceiptPath)
	assert.True(t, got.TotalAmount().Equal(decimal.RequireFromString("5320.50")))
}

func TestClaimRepository_GetByID_NotFound(t *testing.T) {
	repo := NewClaimRepository(setupDB(t), zap.NewNop())

	_, err := repo.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestClaimRepository_CreateDuplicateIsConflict(t *testing.T) {
	repo := NewClaimRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, sampleClaim("dup-1", "E100", now)))
	err := repo.Create(ctx, sampleClaim("dup-1", "E200", now))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := repo.GetByID(ctx, "dup-1")
	require.NoError(t, err)
	assert.Equal(t, "E100", got.EmployeeID)
	assert.Len(t, got.Expenses, 2)
}

func TestClaimRepository_UpdateRoundTripsReimbursement(t *testing.T) {
	repo := NewClaimRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	claim := sampleClaim("c-2", "E100", now)
	require.NoError(t, repo.Create(ctx, claim))

	paidAt := now.Add(48 * time.Hour)
	mode := entity.PaymentModeOnline
	next := claim.Clone()
	next.Status = entity.StatusPaid
	next.ReimbursementRequested = true
	next.ReimbursementRequestedAt = &now
	next.PaidAt = &paidAt
	next.PaymentMode = &mode
	next.ReimbursementInfo = &entity.ReimbursementInfo{
		Method:        entity.MethodBankTransfer,
		TransactionID: "TXN-77",
		Remarks:       "Q1 trip",
		BankDetails: &entity.BankDetails{
			AccountHolderName: "Asha Rao",
			AccountNumber:     "001122334455",
			IFSCCode:          "HDFC0001234",
		},
	}
	next.Revision = 2
	next.UpdatedAt = paidAt

	require.NoError(t, repo.Update(ctx, next, 1))

	got, err := repo.GetByID(ctx, "c-2")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPaid, got.Status)
	assert.Equal(t, int64(2), got.Revision)
	assert.True(t, got.ReimbursementRequested)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
	require.NotNil(t, got.PaymentMode)
	assert.Equal(t, entity.PaymentModeOnline, *got.PaymentMode)
	require.NotNil(t, got.ReimbursementInfo)
	assert.Equal(t, entity.MethodBankTransfer, got.ReimbursementInfo.Method)
	assert.Equal(t, "TXN-77", got.ReimbursementInfo.TransactionID)
	require.NotNil(t, got.ReimbursementInfo.BankDetails)
	assert.Equal(t, "HDFC0001234", got.ReimbursementInfo.BankDetails.IFSCCode)
	assert.Len(t, got.Expenses, 2)
}

func TestClaimRepository_UpdateRevisionChecks(t *testing.T) {
	repo := NewClaimRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	claim := sampleClaim("c-3", "E100", now)
	require.NoError(t, repo.Create(ctx, claim))

	first := claim.Clone()
	first.Status = entity.StatusForwarded
	first.Revision = 2
	require.NoError(t, repo.Update(ctx, first, 1))

	stale := claim.Clone()
	stale.Status = entity.StatusRejected
	stale.Revision = 2
	err := repo.Update(ctx, stale, 1)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	ghost := sampleClaim("ghost", "E100", now)
	err = repo.Update(ctx, ghost, 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	got, err := repo.GetByID(ctx, "c-3")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusForwarded, got.Status)
}

func TestClaimRepository_Lists(t *testing.T) {
	repo := NewClaimRepository(setupDB(t), zap.NewNop())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, sampleClaim("a", "E100", base)))
	require.NoError(t, repo.Create(ctx, sampleClaim("b", "E200", base.Add(time.Hour))))
	require.NoError(t, repo.Create(ctx, sampleClaim("c", "E100", base.Add(2*time.Hour))))

	own, err := repo.ListByOwner(ctx, "E100")
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "c", own[0].ID)
	assert.Equal(t, "a", own[1].ID)
	assert.Len(t, own[0].Expenses, 2)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := repo.ListByOwner(ctx, "E999")
	require.NoError(t, err)
	assert.Empty(t, none)

	pending, err := repo.ListByStatus(ctx, entity.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "a", pending[0].ID)
}

func TestTransaction_RollsBackClaimAndHistory(t *testing.T) {
	db := setupDB(t)
	claims := NewClaimRepository(db, zap.NewNop())
	history := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, claims.Create(txCtx, sampleClaim("tx-1", "E100", now)))
		require.NoError(t, history.Create(txCtx, &entity.ClaimHistory{
			ClaimID:    "tx-1",
			ActorID:    "E100",
			ActorRole:  entity.RoleEmployee,
			NewStatus:  string(entity.StatusPending),
			ActionType: entity.ActionSubmit,
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = claims.GetByID(ctx, "tx-1")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	records, err := history.GetByClaimID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryRepository_CreateAndList(t *testing.T) {
	db := setupDB(t)
	claims := NewClaimRepository(db, zap.NewNop())
	repo := NewHistoryRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, claims.Create(ctx, sampleClaim("h-1", "E100", now)))

	submit := &entity.ClaimHistory{
		ClaimID:    "h-1",
		ActorID:    "E100",
		ActorRole:  entity.RoleEmployee,
		NewStatus:  string(entity.StatusPending),
		ActionType: entity.ActionSubmit,
		Timestamp:  now,
	}
	override := &entity.ClaimHistory{
		ClaimID:        "h-1",
		ActorID:        "D1",
		ActorRole:      entity.RoleDirector,
		PreviousStatus: string(entity.StatusPending),
		NewStatus:      string(entity.StatusApproved),
		ActionType:     entity.ActionAdminOverride,
		ActionData:     `{"override":true,"reason":"audit fix"}`,
		Timestamp:      now.Add(time.Minute),
	}
	require.NoError(t, repo.Create(ctx, submit))
	require.NoError(t, repo.Create(ctx, override))
	assert.NotZero(t, submit.ID)

	records, err := repo.GetByClaimID(ctx, "h-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entity.ActionSubmit, records[0].ActionType)
	assert.True(t, records[1].IsOverride())
	assert.Equal(t, entity.RoleDirector, records[1].ActorRole)
	assert.Contains(t, records[1].ActionData, "audit fix")
}

func TestPayoutRepository_Lifecycle(t *testing.T) {
	db := setupDB(t)
	claims := NewClaimRepository(db, zap.NewNop())
	repo := NewPayoutRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, claims.Create(ctx, sampleClaim("p-1", "E100", now)))

	attempt := &entity.PayoutAttempt{
		ClaimID:     "p-1",
		Method:      entity.MethodUPI,
		Amount:      decimal.RequireFromString("5320.50"),
		Beneficiary: "asha@okbank",
		RequestedBy: "O1",
	}
	require.NoError(t, repo.Create(ctx, attempt))
	assert.Equal(t, entity.PayoutStatusRequested, attempt.Status)

	require.NoError(t, repo.Settle(ctx, attempt.ID, entity.PayoutStatusConfirmed, "claim_1700000000000", ""))

	err := repo.Settle(ctx, attempt.ID, entity.PayoutStatusFailed, "", "late")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	attempts, err := repo.GetByClaimID(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.PayoutStatusConfirmed, attempts[0].Status)
	assert.Equal(t, "claim_1700000000000", attempts[0].TransferID)
	assert.True(t, attempts[0].Amount.Equal(decimal.RequireFromString("5320.50")))
	assert.NotNil(t, attempts[0].SettledAt)
}

func TestPayoutRepository_OneOpenAttemptPerClaim(t *testing.T) {
	db := setupDB(t)
	claims := NewClaimRepository(db, zap.NewNop())
	repo := NewPayoutRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, claims.Create(ctx, sampleClaim("p-2", "E100", now)))
	newAttempt := func() *entity.PayoutAttempt {
		return &entity.PayoutAttempt{
			ClaimID: "p-2",
			Method:  entity.MethodUPI,
			Amount:  decimal.RequireFromString("10"),
		}
	}

	first := newAttempt()
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newAttempt()), apperr.ErrConflict, "one in flight")

	require.NoError(t, repo.Settle(ctx, first.ID, entity.PayoutStatusFailed, "", "timeout"))
	retry := newAttempt()
	require.NoError(t, repo.Create(ctx, retry), "a failed attempt can be retried")

	require.NoError(t, repo.Settle(ctx, retry.ID, entity.PayoutStatusConfirmed, "claim_9", ""))
	assert.ErrorIs(t, repo.Create(ctx, newAttempt()), apperr.ErrConflict, "already paid")

	attempts, err := repo.GetByClaimID(ctx, "p-2")
	require.NoError(t, err)
	assert.Len(t, attempts, 2)
}
