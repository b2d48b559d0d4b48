package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const claimColumns = `
	id, employee_id, employee_name, department, company,
	travel_from, travel_to, purpose, travel_date, return_date,
	status, reimbursement_requested, reimbursement_requested_at, paid_at, payment_mode,
	reimbursement_method, transaction_id, reimbursement_remarks, upi_id,
	bank_account_holder, bank_account_number, bank_ifsc_code,
	revision, created_at, updated_at`

// ClaimRepository implements port.ClaimRepository
type ClaimRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sqlite.DB, logger *zap.Logger) port.ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the claim row and its expenses in one transaction
func (r *ClaimRepository) Create(ctx context.Context, claim *entity.Claim) error {
	query := `INSERT INTO claims (` + claimColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		args := append([]interface{}{claim.ID}, claimValues(claim)...)
		args = append(args, claim.Revision, claim.CreatedAt, claim.UpdatedAt)

		if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
			if sqlite.IsUniqueViolation(err) {
				return fmt.Errorf("%w: claim %s already exists", apperr.ErrConflict, claim.ID)
			}
			r.logger.Error("Failed to create claim", zap.String("claim_id", claim.ID), zap.Error(err))
			return fmt.Errorf("failed to create claim: %w", err)
		}
		return r.insertExpenses(ctx, claim)
	})
}

// GetByID retrieves a claim with its expenses
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: claim %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		r.logger.Error("Failed to get claim by ID", zap.String("claim_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	if err := r.attachExpenses(ctx, []*entity.Claim{claim}); err != nil {
		return nil, err
	}
	return claim, nil
}

// ListByOwner retrieves every claim submitted by the employee, newest first
func (r *ClaimRepository) ListByOwner(ctx context.Context, employeeID string) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE employee_id = ? ORDER BY created_at DESC`
	return r.list(ctx, "owner", query, employeeID)
}

// ListAll retrieves every claim, newest first
func (r *ClaimRepository) ListAll(ctx context.Context) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims ORDER BY created_at DESC`
	return r.list(ctx, "all", query)
}

// ListByStatus retrieves claims in the given status, oldest first
func (r *ClaimRepository) ListByStatus(ctx context.Context, status entity.ClaimStatus) ([]*entity.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE status = ? ORDER BY created_at ASC`
	return r.list(ctx, "status", query, status)
}

// Update overwrites the claim when the stored revision still matches expectedRevision
func (r *ClaimRepository) Update(ctx context.Context, claim *entity.Claim, expectedRevision int64) error {
	query := `
		UPDATE claims SET
			employee_id = ?, employee_name = ?, department = ?, company = ?,
			travel_from = ?, travel_to = ?, purpose = ?, travel_date = ?, return_date = ?,
			status = ?, reimbursement_requested = ?, reimbursement_requested_at = ?, paid_at = ?, payment_mode = ?,
			reimbursement_method = ?, transaction_id = ?, reimbursement_remarks = ?, upi_id = ?,
			bank_account_holder = ?, bank_account_number = ?, bank_ifsc_code = ?,
			revision = ?, updated_at = ?
		WHERE id = ? AND revision = ?
	`

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		args := claimValues(claim)
		args = append(args, claim.Revision, claim.UpdatedAt, claim.ID, expectedRevision)

		result, err := r.getExecutor(ctx).ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.Error("Failed to update claim", zap.String("claim_id", claim.ID), zap.Error(err))
			return fmt.Errorf("failed to update claim: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return r.missOrConflict(ctx, claim.ID, expectedRevision)
		}

		if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM claim_expenses WHERE claim_id = ?`, claim.ID); err != nil {
			r.logger.Error("Failed to clear claim expenses", zap.String("claim_id", claim.ID), zap.Error(err))
			return fmt.Errorf("failed to clear expenses: %w", err)
		}
		return r.insertExpenses(ctx, claim)
	})
}

func (r *ClaimRepository) missOrConflict(ctx context.Context, id string, expectedRevision int64) error {
	var current int64
	err := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT revision FROM claims WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: claim %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to read claim revision: %w", err)
	}
	return fmt.Errorf("%w: claim %s expected revision %d, found %d", apperr.ErrConflict, id, expectedRevision, current)
}

func (r *ClaimRepository) list(ctx context.Context, scope, query string, args ...interface{}) ([]*entity.Claim, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.String("scope", scope), zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	claims := make([]*entity.Claim, 0)
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate claims: %w", err)
	}

	if err := r.attachExpenses(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (r *ClaimRepository) insertExpenses(ctx context.Context, claim *entity.Claim) error {
	query := `
		INSERT INTO claim_expenses (claim_id, position, type, amount, description, receipt_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, e := range claim.Expenses {
		_, err := r.getExecutor(ctx).ExecContext(ctx, query,
			claim.ID, i, e.Type, e.Amount, e.Description, e.ReceiptPath)
		if err != nil {
			r.logger.Error("Failed to insert claim expense",
				zap.String("claim_id", claim.ID), zap.Int("position", i), zap.Error(err))
			return fmt.Errorf("failed to insert expense: %w", err)
		}
	}
	return nil
}

// attachExpenses loads the expenses of every claim with a single query
func (r *ClaimRepository) attachExpenses(ctx context.Context, claims []*entity.Claim) error {
	if len(claims) == 0 {
		return nil
	}

	byID := make(map[string]*entity.Claim, len(claims))
	args := make([]interface{}, 0, len(claims))
	for _, c := range claims {
		c.Expenses = []entity.Expense{}
		byID[c.ID] = c
		args = append(args, c.ID)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	query := `
		SELECT claim_id, type, amount, description, receipt_path
		FROM claim_expenses
		WHERE claim_id IN (` + placeholders + `)
		ORDER BY claim_id, position
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to load claim expenses", zap.Int("claims", len(claims)), zap.Error(err))
		return fmt.Errorf("failed to load expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var claimID string
		var e entity.Expense
		if err := rows.Scan(&claimID, &e.Type, &e.Amount, &e.Description, &e.ReceiptPath); err != nil {
			return fmt.Errorf("failed to scan expense: %w", err)
		}
		if c, ok := byID[claimID]; ok {
			c.Expenses = append(c.Expenses, e)
		}
	}
	return rows.Err()
}

// claimValues returns the mutable columns in claimColumns order, without id, revision and timestamps
func claimValues(c *entity.Claim) []interface{} {
	var method, upiID, txID, remarks, holder, number, ifsc string
	var methodCol sql.NullString
	if info := c.ReimbursementInfo; info != nil {
		method = string(info.Method)
		methodCol = sql.NullString{String: method, Valid: method != ""}
		upiID = info.UPIID
		txID = info.TransactionID
		remarks = info.Remarks
		if bd := info.BankDetails; bd != nil {
			holder, number, ifsc = bd.AccountHolderName, bd.AccountNumber, bd.IFSCCode
		}
	}

	var mode sql.NullString
	if c.PaymentMode != nil {
		mode = sql.NullString{String: string(*c.PaymentMode), Valid: true}
	}

	return []interface{}{
		c.EmployeeID, c.EmployeeName, c.Department, c.Company,
		c.TravelFrom, c.TravelTo, c.Purpose, c.TravelDate, c.ReturnDate,
		c.Status, c.ReimbursementRequested, nullTime(c.ReimbursementRequestedAt), nullTime(c.PaidAt), mode,
		methodCol, txID, remarks, upiID,
		holder, number, ifsc,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClaim(row rowScanner) (*entity.Claim, error) {
	var c entity.Claim
	var requestedAt, paidAt sql.NullTime
	var mode, method sql.NullString
	var txID, remarks, upiID, holder, number, ifsc string

	err := row.Scan(
		&c.ID, &c.EmployeeID, &c.EmployeeName, &c.Department, &c.Company,
		&c.TravelFrom, &c.TravelTo, &c.Purpose, &c.TravelDate, &c.ReturnDate,
		&c.Status, &c.ReimbursementRequested, &requestedAt, &paidAt, &mode,
		&method, &txID, &remarks, &upiID,
		&holder, &number, &ifsc,
		&c.Revision, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if requestedAt.Valid {
		c.ReimbursementRequestedAt = &requestedAt.Time
	}
	if paidAt.Valid {
		c.PaidAt = &paidAt.Time
	}
	if mode.Valid {
		m := entity.PaymentMode(mode.String)
		c.PaymentMode = &m
	}
	if method.Valid {
		info := &entity.ReimbursementInfo{
			Method:        entity.PaymentMethod(method.String),
			TransactionID: txID,
			Remarks:       remarks,
			UPIID:         upiID,
		}
		if holder != "" || number != "" || ifsc != "" {
			info.BankDetails = &entity.BankDetails{
				AccountHolderName: holder,
				AccountNumber:     number,
				IFSCCode:          ifsc,
			}
		}
		c.ReimbursementInfo = info
	}
	return &c, nil
}

func (r *ClaimRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return r.db.Executor(ctx)
}

// Verify interface compliance
var _ port.ClaimRepository = (*ClaimRepository)(nil)
