package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PayoutRepository implements port.PayoutRepository
type PayoutRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewPayoutRepository creates a new payout attempt repository
func NewPayoutRepository(db *sqlite.DB, logger *zap.Logger) port.PayoutRepository {
	return &PayoutRepository{
		db:     db,
		logger: logger,
	}
}

// Create records a payout attempt before the collaborator is called.
// A second REQUESTED or CONFIRMED attempt for the same claim is a Conflict.
func (r *PayoutRepository) Create(ctx context.Context, attempt *entity.PayoutAttempt) error {
	query := `
		INSERT INTO payout_attempts (
			claim_id, method, amount, beneficiary, transfer_id,
			status, error, requested_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if attempt.Status == "" {
		attempt.Status = entity.PayoutStatusRequested
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		attempt.ClaimID,
		attempt.Method,
		attempt.Amount,
		attempt.Beneficiary,
		attempt.TransferID,
		attempt.Status,
		attempt.Error,
		attempt.RequestedBy,
		attempt.CreatedAt,
	)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return fmt.Errorf("%w: claim %s already has a payout in flight or confirmed", apperr.ErrConflict, attempt.ClaimID)
		}
		r.logger.Error("Failed to create payout attempt", zap.String("claim_id", attempt.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to create payout attempt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	attempt.ID = id
	return nil
}

// Settle closes a REQUESTED attempt
func (r *PayoutRepository) Settle(ctx context.Context, id int64, status, transferID, errMsg string) error {
	query := `
		UPDATE payout_attempts
		SET status = ?, transfer_id = ?, error = ?, settled_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		status, transferID, errMsg, time.Now().UTC(), id, entity.PayoutStatusRequested)
	if err != nil {
		r.logger.Error("Failed to settle payout attempt", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to settle payout attempt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: open payout attempt %d", apperr.ErrNotFound, id)
	}
	return nil
}

// GetByClaimID retrieves the payout attempts of a claim, oldest first
func (r *PayoutRepository) GetByClaimID(ctx context.Context, claimID string) ([]*entity.PayoutAttempt, error) {
	query := `
		SELECT id, claim_id, method, amount, beneficiary, transfer_id,
			status, error, requested_by, created_at, settled_at
		FROM payout_attempts
		WHERE claim_id = ?
		ORDER BY id ASC
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, claimID)
	if err != nil {
		r.logger.Error("Failed to get payout attempts", zap.String("claim_id", claimID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payout attempts: %w", err)
	}
	defer rows.Close()

	attempts := make([]*entity.PayoutAttempt, 0)
	for rows.Next() {
		var a entity.PayoutAttempt
		var settledAt sql.NullTime
		err := rows.Scan(
			&a.ID, &a.ClaimID, &a.Method, &a.Amount, &a.Beneficiary, &a.TransferID,
			&a.Status, &a.Error, &a.RequestedBy, &a.CreatedAt, &settledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout attempt: %w", err)
		}
		if settledAt.Valid {
			a.SettledAt = &settledAt.Time
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

func (r *PayoutRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return r.db.Executor(ctx)
}

// Verify interface compliance
var _ port.PayoutRepository = (*PayoutRepository)(nil)
