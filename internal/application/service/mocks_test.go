package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/garyjia/travel-claims/internal/application/port"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
)

// --- Mock WorkflowEngine ---
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Submit(ctx context.Context, actor entity.Actor, draft *entity.Claim) (*entity.Claim, error) {
	args := m.Called(ctx, actor, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) Forward(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) Approve(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) Reject(ctx context.Context, actor entity.Actor, claimID, reason string) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) RequestReimbursement(ctx context.Context, actor entity.Actor, claimID string, req reimbursement.Request) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) MarkPaid(ctx context.Context, actor entity.Actor, claimID string, c reimbursement.Confirmation) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

func (m *MockEngine) OverrideStatus(ctx context.Context, actor entity.Actor, claimID string, status entity.ClaimStatus, reason string) (*entity.Claim, error) {
	args := m.Called(ctx, actor, claimID, status, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Claim), args.Error(1)
}

var _ workflow.WorkflowEngine = (*MockEngine)(nil)

// --- Mock PayoutGateway ---
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SubmitPayout(ctx context.Context, req *entity.PayoutRequest) (*entity.PayoutResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.PayoutResult), args.Error(1)
}

var _ port.PayoutGateway = (*MockGateway)(nil)

// --- Mock repositories ---
type mockClaimRepo struct {
	claims map[string]*entity.Claim

	getByIDFunc func(ctx context.Context, id string) (*entity.Claim, error)
}

func newMockClaimRepo(claims ...*entity.Claim) *mockClaimRepo {
	m := &mockClaimRepo{claims: map[string]*entity.Claim{}}
	for _, c := range claims {
		m.claims[c.ID] = c
	}
	return m
}

func (m *mockClaimRepo) Create(ctx context.Context, claim *entity.Claim) error {
	m.claims[claim.ID] = claim.Clone()
	return nil
}

func (m *mockClaimRepo) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	c, ok := m.claims[id]
	if !ok {
		return nil, fmt.Errorf("%w: claim %s", apperr.ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (m *mockClaimRepo) ListByOwner(ctx context.Context, employeeID string) ([]*entity.Claim, error) {
	return m.filter(func(c *entity.Claim) bool { return c.EmployeeID == employeeID }), nil
}

func (m *mockClaimRepo) ListAll(ctx context.Context) ([]*entity.Claim, error) {
	return m.filter(func(*entity.Claim) bool { return true }), nil
}

func (m *mockClaimRepo) ListByStatus(ctx context.Context, status entity.ClaimStatus) ([]*entity.Claim, error) {
	return m.filter(func(c *entity.Claim) bool { return c.Status == status }), nil
}

func (m *mockClaimRepo) Update(ctx context.Context, claim *entity.Claim, expectedRevision int64) error {
	m.claims[claim.ID] = claim.Clone()
	return nil
}

func (m *mockClaimRepo) filter(keep func(*entity.Claim) bool) []*entity.Claim {
	out := []*entity.Claim{}
	for _, c := range m.claims {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type mockHistoryRepo struct {
	records []*entity.ClaimHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.ClaimHistory) error {
	history.ID = int64(len(m.records) + 1)
	m.records = append(m.records, history)
	return nil
}

func (m *mockHistoryRepo) GetByClaimID(ctx context.Context, claimID string) ([]*entity.ClaimHistory, error) {
	out := []*entity.ClaimHistory{}
	for _, r := range m.records {
		if r.ClaimID == claimID {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockPayoutRepo struct {
	attempts []*entity.PayoutAttempt

	createFunc func(ctx context.Context, attempt *entity.PayoutAttempt) error
}

func (m *mockPayoutRepo) Create(ctx context.Context, attempt *entity.PayoutAttempt) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, attempt)
	}
	attempt.ID = int64(len(m.attempts) + 1)
	attempt.CreatedAt = time.Now()
	cp := *attempt
	m.attempts = append(m.attempts, &cp)
	return nil
}

func (m *mockPayoutRepo) Settle(ctx context.Context, id int64, status, transferID, errMsg string) error {
	for _, a := range m.attempts {
		if a.ID == id && a.Status == entity.PayoutStatusRequested {
			a.Status = status
			a.TransferID = transferID
			a.Error = errMsg
			now := time.Now()
			a.SettledAt = &now
			return nil
		}
	}
	return fmt.Errorf("%w: open payout attempt %d", apperr.ErrNotFound, id)
}

func (m *mockPayoutRepo) GetByClaimID(ctx context.Context, claimID string) ([]*entity.PayoutAttempt, error) {
	out := []*entity.PayoutAttempt{}
	for _, a := range m.attempts {
		if a.ClaimID == claimID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- In-memory blob store and inspector ---
type memBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string

	saveFunc func(path string) error
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobStore) Save(ctx context.Context, path string, content []byte, contentType string) error {
	if m.saveFunc != nil {
		if err := m.saveFunc(path); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[path] = append([]byte(nil), content...)
	m.types[path] = contentType
	return nil
}

func (m *memBlobStore) Open(ctx context.Context, path string) (io.ReadCloser, *port.BlobInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[path]
	if !ok {
		return nil, nil, fmt.Errorf("%w: receipt %s", apperr.ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(b)), &port.BlobInfo{Path: path, Size: int64(len(b)), ContentType: m.types[path]}, nil
}

func (m *memBlobStore) Exists(ctx context.Context, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[path]
	return ok
}

func (m *memBlobStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, path)
	delete(m.types, path)
	return nil
}

func (m *memBlobStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

type mockInspector struct {
	inspectFunc func(content []byte) (*port.ReceiptInspection, error)
}

func (m *mockInspector) Inspect(content []byte) (*port.ReceiptInspection, error) {
	if m.inspectFunc != nil {
		return m.inspectFunc(content)
	}
	if bytes.HasPrefix(content, []byte("%PDF")) {
		return &port.ReceiptInspection{ContentType: "application/pdf", Extension: ".pdf", Pages: 1}, nil
	}
	return nil, apperr.NewValidationError("receipt", "unsupported file type text/plain")
}

// --- Fixtures ---
var (
	employee = entity.Actor{UserID: "u-emp", EmployeeID: "E100", Name: "Asha Rao", Role: entity.RoleEmployee}
	other    = entity.Actor{UserID: "u-oth", EmployeeID: "E200", Name: "Ravi", Role: entity.RoleEmployee}
	hr       = entity.Actor{UserID: "u-hr", Role: entity.RoleHR}
	office   = entity.Actor{UserID: "u-off", Role: entity.RoleOffice}
)

func draftClaim() *entity.Claim {
	return &entity.Claim{
		EmployeeName: "Asha Rao",
		Department:   "Sales",
		TravelFrom:   "Pune",
		TravelTo:     "Delhi",
		Purpose:      "Client visit",
		TravelDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		Expenses: []entity.Expense{
			{Type: entity.ExpenseTypeTravel, Amount: decimal.RequireFromString("4500"), Description: "Flight"},
			{Type: entity.ExpenseTypeMeal, Amount: decimal.RequireFromString("750.50"), Description: "Meals"},
		},
	}
}

func requestedClaim(id string, info *entity.ReimbursementInfo) *entity.Claim {
	c := draftClaim()
	c.ID = id
	c.EmployeeID = employee.EmployeeID
	c.Status = entity.StatusReimbursementRequested
	c.ReimbursementRequested = true
	c.ReimbursementInfo = info
	c.Revision = 4
	return c
}
