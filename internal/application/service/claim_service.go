package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	domainwf "github.com/garyjia/travel-claims/internal/domain/workflow"
)

// ReceiptUpload is one uploaded receipt file, matched to an expense by index
type ReceiptUpload struct {
	ExpenseIndex int
	Filename     string
	Content      []byte
}

// ClaimService is the read side of claims plus submission with receipts
type ClaimService interface {
	// Submit stores receipts and hands the claim to the workflow engine.
	// Stored receipts are removed again when the submission fails.
	Submit(ctx context.Context, actor entity.Actor, draft *entity.Claim, receipts []ReceiptUpload) (*entity.Claim, error)

	// Get returns a claim the actor may view. Claims of other employees look missing.
	Get(ctx context.Context, actor entity.Actor, claimID string) (*entity.Claim, error)

	// ListMine returns the actor's own claims
	ListMine(ctx context.Context, actor entity.Actor) ([]*entity.Claim, error)

	// ListAll returns every claim, optionally filtered by status (staff only)
	ListAll(ctx context.Context, actor entity.Actor, status *entity.ClaimStatus) ([]*entity.Claim, error)

	// History returns the transition journal of a claim (staff only)
	History(ctx context.Context, actor entity.Actor, claimID string) ([]*entity.ClaimHistory, error)

	// OpenReceipt streams the receipt attached to an expense
	OpenReceipt(ctx context.Context, actor entity.Actor, claimID string, expenseIndex int) (io.ReadCloser, *port.BlobInfo, error)
}

type claimServiceImpl struct {
	engine      workflow.WorkflowEngine
	claimRepo   port.ClaimRepository
	historyRepo port.HistoryRepository
	blobs       port.BlobStore
	inspector   port.ReceiptInspector
	logger      Logger
	newID       func() string
}

// NewClaimService creates a new ClaimService
func NewClaimService(
	engine workflow.WorkflowEngine,
	claimRepo port.ClaimRepository,
	historyRepo port.HistoryRepository,
	blobs port.BlobStore,
	inspector port.ReceiptInspector,
	logger Logger,
) ClaimService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &claimServiceImpl{
		engine:      engine,
		claimRepo:   claimRepo,
		historyRepo: historyRepo,
		blobs:       blobs,
		inspector:   inspector,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

type inspectedReceipt struct {
	upload     ReceiptUpload
	inspection *port.ReceiptInspection
}

func (s *claimServiceImpl) Submit(ctx context.Context, actor entity.Actor, draft *entity.Claim, receipts []ReceiptUpload) (*entity.Claim, error) {
	if draft == nil {
		return nil, apperr.NewValidationError("claim", "is required")
	}
	if err := domainwf.Authorize(actor, draft, domainwf.TriggerSubmit); err != nil {
		return nil, err
	}

	checked, err := s.inspectReceipts(draft, receipts)
	if err != nil {
		return nil, err
	}

	claim := draft.Clone()
	claim.ID = s.newID()

	saved := make([]string, 0, len(checked))
	for _, r := range checked {
		path := entity.ReceiptPath(claim.ID, r.upload.ExpenseIndex, r.inspection.Extension)
		if err := s.blobs.Save(ctx, path, r.upload.Content, r.inspection.ContentType); err != nil {
			s.cleanup(ctx, saved)
			return nil, fmt.Errorf("failed to store receipt %d: %w", r.upload.ExpenseIndex, err)
		}
		saved = append(saved, path)
		claim.Expenses[r.upload.ExpenseIndex].ReceiptPath = path
	}

	created, err := s.engine.Submit(ctx, actor, claim)
	if err != nil {
		s.cleanup(ctx, saved)
		return nil, err
	}

	if len(saved) > 0 {
		s.logger.Info("Stored claim receipts", "claim_id", created.ID, "count", len(saved))
	}
	return created, nil
}

// inspectReceipts validates every upload before anything is written
func (s *claimServiceImpl) inspectReceipts(draft *entity.Claim, receipts []ReceiptUpload) ([]inspectedReceipt, error) {
	verr := &apperr.ValidationError{}
	seen := make(map[int]bool, len(receipts))
	checked := make([]inspectedReceipt, 0, len(receipts))

	for _, r := range receipts {
		field := fmt.Sprintf("receipts[%d]", r.ExpenseIndex)
		if r.ExpenseIndex < 0 || r.ExpenseIndex >= len(draft.Expenses) {
			verr.Add(field, "does not match an expense")
			continue
		}
		if seen[r.ExpenseIndex] {
			verr.Add(field, "more than one receipt for the same expense")
			continue
		}
		seen[r.ExpenseIndex] = true

		inspection, err := s.inspector.Inspect(r.Content)
		if err != nil {
			var ve *apperr.ValidationError
			if errors.As(err, &ve) {
				for _, f := range ve.Fields {
					verr.Add(field, f.Message)
				}
				continue
			}
			return nil, fmt.Errorf("failed to inspect receipt %d: %w", r.ExpenseIndex, err)
		}
		checked = append(checked, inspectedReceipt{upload: r, inspection: inspection})
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return checked, nil
}

func (s *claimServiceImpl) cleanup(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.blobs.Delete(context.WithoutCancel(ctx), p); err != nil {
			s.logger.Error("Failed to remove orphaned receipt", "path", p, "error", err)
		}
	}
}

func (s *claimServiceImpl) Get(ctx context.Context, actor entity.Actor, claimID string) (*entity.Claim, error) {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !domainwf.CanView(actor, claim) {
		return nil, fmt.Errorf("%w: claim %s", apperr.ErrNotFound, claimID)
	}
	return claim, nil
}

func (s *claimServiceImpl) ListMine(ctx context.Context, actor entity.Actor) ([]*entity.Claim, error) {
	if actor.EmployeeID == "" {
		return nil, fmt.Errorf("%w: caller has no employee id", apperr.ErrForbidden)
	}
	return s.claimRepo.ListByOwner(ctx, actor.EmployeeID)
}

func (s *claimServiceImpl) ListAll(ctx context.Context, actor entity.Actor, status *entity.ClaimStatus) ([]*entity.Claim, error) {
	if !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: role %q may not list all claims", apperr.ErrForbidden, actor.Role)
	}
	if status != nil {
		return s.claimRepo.ListByStatus(ctx, *status)
	}
	return s.claimRepo.ListAll(ctx)
}

func (s *claimServiceImpl) History(ctx context.Context, actor entity.Actor, claimID string) ([]*entity.ClaimHistory, error) {
	if !actor.Role.IsStaff() {
		return nil, fmt.Errorf("%w: role %q may not read claim history", apperr.ErrForbidden, actor.Role)
	}
	if _, err := s.claimRepo.GetByID(ctx, claimID); err != nil {
		return nil, err
	}
	return s.historyRepo.GetByClaimID(ctx, claimID)
}

func (s *claimServiceImpl) OpenReceipt(ctx context.Context, actor entity.Actor, claimID string, expenseIndex int) (io.ReadCloser, *port.BlobInfo, error) {
	claim, err := s.Get(ctx, actor, claimID)
	if err != nil {
		return nil, nil, err
	}
	if expenseIndex < 0 || expenseIndex >= len(claim.Expenses) || claim.Expenses[expenseIndex].ReceiptPath == "" {
		return nil, nil, fmt.Errorf("%w: no receipt for expense %d", apperr.ErrNotFound, expenseIndex)
	}
	return s.blobs.Open(ctx, claim.Expenses[expenseIndex].ReceiptPath)
}
