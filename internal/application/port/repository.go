package port

import (
	"context"

	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// ClaimRepository defines persistence operations for Claim.
// Expenses are stored and loaded together with their claim.
type ClaimRepository interface {
	// Create stores a new claim. The caller assigns ID, timestamps and revision.
	Create(ctx context.Context, claim *entity.Claim) error

	// GetByID returns the claim or an error wrapping apperr.ErrNotFound
	GetByID(ctx context.Context, id string) (*entity.Claim, error)

	ListByOwner(ctx context.Context, employeeID string) ([]*entity.Claim, error)
	ListAll(ctx context.Context) ([]*entity.Claim, error)
	ListByStatus(ctx context.Context, status entity.ClaimStatus) ([]*entity.Claim, error)

	// Update replaces the stored record when its revision still equals expectedRevision.
	// It fails with apperr.ErrNotFound when the id is gone and apperr.ErrConflict when
	// another writer advanced the revision first.
	Update(ctx context.Context, claim *entity.Claim, expectedRevision int64) error
}

// HistoryRepository defines persistence operations for the claim transition journal
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.ClaimHistory) error
	GetByClaimID(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error)
}

// PayoutRepository defines persistence operations for PayoutAttempt
type PayoutRepository interface {
	Create(ctx context.Context, attempt *entity.PayoutAttempt) error

	// Settle moves a REQUESTED attempt to CONFIRMED or FAILED
	Settle(ctx context.Context, id int64, status, transferID, errMsg string) error

	GetByClaimID(ctx context.Context, claimID string) ([]*entity.PayoutAttempt, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
