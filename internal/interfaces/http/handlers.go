package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/garyjia/travel-claims/internal/application/service"
	"github.com/garyjia/travel-claims/internal/application/workflow"
	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
)

// Version is reported by the health check
var Version = "1.0.0"

// Handlers contains all HTTP request handlers
type Handlers struct {
	claims          service.ClaimService
	payouts         service.PayoutService
	engine          workflow.WorkflowEngine
	maxReceiptBytes int64
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	claims service.ClaimService,
	payouts service.PayoutService,
	engine workflow.WorkflowEngine,
	maxReceiptBytes int64,
	logger Logger,
) *Handlers {
	return &Handlers{
		claims:          claims,
		payouts:         payouts,
		engine:          engine,
		maxReceiptBytes: maxReceiptBytes,
		logger:          logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
		},
	})
}

// SubmitClaim handles POST /api/claim
func (h *Handlers) SubmitClaim(c *gin.Context) {
	actor, _ := actorFrom(c)

	var (
		req      CreateClaimRequest
		receipts []service.ReceiptUpload
		err      error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		receipts, err = h.bindMultipartClaim(c, &req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		h.respondBindError(c, "submit_claim", err)
		return
	}

	claim, err := h.claims.Submit(c.Request.Context(), actor, req.toDraft(), receipts)
	if err != nil {
		h.respondError(c, "submit_claim", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: claim})
}

// bindMultipartClaim decodes the JSON form fields and collects receipt files.
// Files under "receipts" match expenses by position; a "receipt_<i>" field
// names its expense explicitly.
func (h *Handlers) bindMultipartClaim(c *gin.Context, req *CreateClaimRequest) ([]service.ReceiptUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.NewValidationError("form", "invalid multipart form")
	}

	verr := &apperr.ValidationError{}
	fields := []struct {
		name   string
		target interface{}
	}{
		{"employeeInfo", &req.EmployeeInfo},
		{"travelDetails", &req.TravelDetails},
		{"expenses", &req.Expenses},
	}
	for _, f := range fields {
		values := form.Value[f.name]
		if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
			verr.Add(f.name, "is required")
			continue
		}
		if err := json.Unmarshal([]byte(values[0]), f.target); err != nil {
			verr.Add(f.name, "must be valid JSON: "+err.Error())
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	var receipts []service.ReceiptUpload
	for i, fh := range form.File["receipts"] {
		upload, err := h.readReceipt(i, fh)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, upload)
	}
	named := make([]string, 0, len(form.File))
	for name, files := range form.File {
		if strings.HasPrefix(name, "receipt_") && len(files) > 0 {
			named = append(named, name)
		}
	}
	sort.Strings(named)
	for _, name := range named {
		files := form.File[name]
		idx, err := strconv.Atoi(strings.TrimPrefix(name, "receipt_"))
		if err != nil {
			return nil, apperr.NewValidationError(name, "receipt field must be receipt_<expense index>")
		}
		upload, err := h.readReceipt(idx, files[0])
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, upload)
	}
	return receipts, nil
}

func (h *Handlers) readReceipt(index int, fh *multipart.FileHeader) (service.ReceiptUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.ReceiptUpload{}, fmt.Errorf("failed to open receipt %d: %w", index, err)
	}
	defer f.Close()

	// one byte past the limit lets the inspector report the size problem
	content, err := io.ReadAll(io.LimitReader(f, h.maxReceiptBytes+1))
	if err != nil {
		return service.ReceiptUpload{}, fmt.Errorf("failed to read receipt %d: %w", index, err)
	}
	return service.ReceiptUpload{ExpenseIndex: index, Filename: fh.Filename, Content: content}, nil
}

// ListMyClaims handles GET /api/employee/claims
func (h *Handlers) ListMyClaims(c *gin.Context) {
	actor, _ := actorFrom(c)

	claims, err := h.claims.ListMine(c.Request.Context(), actor)
	if err != nil {
		h.respondError(c, "list_my_claims", err)
		return
	}
	if len(claims) == 0 {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "no claims found for your employee id"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// ListClaims handles GET /api/claims
func (h *Handlers) ListClaims(c *gin.Context) {
	actor, _ := actorFrom(c)

	var filter *entity.ClaimStatus
	if raw := c.Query("status"); raw != "" {
		status, ok := entity.ParseClaimStatus(raw)
		if !ok {
			h.respondError(c, "list_claims", apperr.NewValidationError("status", fmt.Sprintf("unknown status %q", raw)))
			return
		}
		filter = &status
	}

	claims, err := h.claims.ListAll(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, "list_claims", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	actor, _ := actorFrom(c)

	claim, err := h.claims.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, "get_claim", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// GetClaimHistory handles GET /api/claims/:id/history
func (h *Handlers) GetClaimHistory(c *gin.Context) {
	actor, _ := actorFrom(c)

	records, err := h.claims.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, "claim_history", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetPayoutAttempts handles GET /api/claims/:id/payouts
func (h *Handlers) GetPayoutAttempts(c *gin.Context) {
	actor, _ := actorFrom(c)

	attempts, err := h.payouts.Attempts(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.respondError(c, "payout_attempts", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: attempts})
}

// GetReceipt handles GET /api/claims/:id/receipts/:index
func (h *Handlers) GetReceipt(c *gin.Context) {
	actor, _ := actorFrom(c)

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "receipt index must be a number")
		return
	}

	rc, info, err := h.claims.OpenReceipt(c.Request.Context(), actor, c.Param("id"), index)
	if err != nil {
		h.respondError(c, "get_receipt", err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, nil)
}

// ForwardClaim handles PATCH /api/claims/:id/forward
func (h *Handlers) ForwardClaim(c *gin.Context) {
	h.commentTransition(c, "forward_claim", h.engine.Forward)
}

// ApproveClaim handles PATCH /api/claims/:id/approve
func (h *Handlers) ApproveClaim(c *gin.Context) {
	h.commentTransition(c, "approve_claim", h.engine.Approve)
}

// RejectClaim handles PATCH /api/claims/:id/reject
func (h *Handlers) RejectClaim(c *gin.Context) {
	h.commentTransition(c, "reject_claim", h.engine.Reject)
}

type commentFunc func(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error)

func (h *Handlers) commentTransition(c *gin.Context, op string, apply commentFunc) {
	actor, _ := actorFrom(c)

	var req CommentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondBindError(c, op, err)
		return
	}

	claim, err := apply(c.Request.Context(), actor, c.Param("id"), req.text())
	if err != nil {
		h.respondError(c, op, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// RequestReimbursement handles PATCH /api/claims/:id/request-reimbursement
func (h *Handlers) RequestReimbursement(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req reimbursement.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, "request_reimbursement", err)
		return
	}

	claim, err := h.engine.RequestReimbursement(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		h.respondError(c, "request_reimbursement", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// OverrideStatus handles PUT /api/claims/:id/status
func (h *Handlers) OverrideStatus(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req OverrideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, "override_status", err)
		return
	}

	status, ok := entity.ParseClaimStatus(req.Status)
	if !ok {
		h.respondError(c, "override_status", apperr.NewValidationError("status", fmt.Sprintf("unknown status %q", req.Status)))
		return
	}

	claim, err := h.engine.OverrideStatus(c.Request.Context(), actor, c.Param("id"), status, req.Reason)
	if err != nil {
		h.respondError(c, "override_status", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// MarkPaid handles PATCH /api/claims/:id/mark-paid
func (h *Handlers) MarkPaid(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, "mark_paid", err)
		return
	}

	claim, err := h.engine.MarkPaid(c.Request.Context(), actor, c.Param("id"), req.toConfirmation())
	if err != nil {
		h.respondError(c, "mark_paid", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// ProcessPayment handles POST /api/claims/:id/process-payment
func (h *Handlers) ProcessPayment(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req ProcessPaymentRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		h.respondBindError(c, "process_payment", err)
		return
	}

	claim, err := h.payouts.ProcessPayment(c.Request.Context(), actor, c.Param("id"), req.Remarks)
	if err != nil {
		h.respondError(c, "process_payment", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// SettlePayoutAttempt handles PATCH /api/claims/:id/payouts/:attemptId
func (h *Handlers) SettlePayoutAttempt(c *gin.Context) {
	actor, _ := actorFrom(c)

	attemptID, err := strconv.ParseInt(c.Param("attemptId"), 10, 64)
	if err != nil {
		badRequest(c, "payout attempt id must be a number")
		return
	}

	var req SettleAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, "settle_payout", err)
		return
	}

	claim, err := h.payouts.SettleAttempt(c.Request.Context(), actor, c.Param("id"), attemptID, req.toOutcome())
	if err != nil {
		h.respondError(c, "settle_payout", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claim})
}

// DirectPayout handles POST /api/payouts/process
func (h *Handlers) DirectPayout(c *gin.Context) {
	actor, _ := actorFrom(c)

	var req DirectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondBindError(c, "direct_payout", err)
		return
	}

	payout := req.toPayoutRequest()
	result, err := h.payouts.DirectPayout(c.Request.Context(), actor, payout)
	if err != nil {
		h.respondError(c, "direct_payout", err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: PayoutResponse{
			TransferID: result.TransferID,
			Name:       payout.Name,
			UPIID:      payout.UPIID,
			Amount:     payout.Amount.StringFixed(2),
			Status:     "SUCCESS",
			Message:    result.Message,
		},
	})
}

// respondBindError turns decoder and binding failures into a 400 with field details
func (h *Handlers) respondBindError(c *gin.Context, op string, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := &apperr.ValidationError{}
		for _, fe := range verrs {
			out.Add(fe.Field(), "failed the "+fe.Tag()+" check")
		}
		h.respondError(c, op, out)
		return
	}
	if errors.Is(err, apperr.ErrValidation) {
		h.respondError(c, op, err)
		return
	}
	if errors.Is(err, io.EOF) {
		h.respondError(c, op, apperr.NewValidationError("body", "request body is required"))
		return
	}
	h.respondError(c, op, apperr.NewValidationError("body", err.Error()))
}

// bindOptionalJSON decodes the body when there is one
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
