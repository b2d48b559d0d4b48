package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/travel-claims/internal/application/service"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
	"github.com/garyjia/travel-claims/pkg/utils"
)

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// Date accepts "2006-01-02" or RFC 3339 timestamps
type Date struct {
	time.Time
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

// UnmarshalJSON implements json.Unmarshaler. Empty strings and null leave the date zero.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// EmployeeInfo is the employee block of a claim submission
type EmployeeInfo struct {
	Name       string `json:"name"`
	EmployeeID string `json:"employeeId"`
	Department string `json:"department"`
	Company    string `json:"company"`
}

// TravelDetails is the trip block of a claim submission
type TravelDetails struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Purpose   string `json:"purpose"`
	StartDate Date   `json:"startDate"`
	EndDate   Date   `json:"endDate"`
}

// ExpenseInput is one expense line of a claim submission
type ExpenseInput struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CreateClaimRequest is the body of POST /api/claim. Multipart submissions
// carry the same three blocks as JSON encoded form fields.
type CreateClaimRequest struct {
	EmployeeInfo  EmployeeInfo   `json:"employeeInfo"`
	TravelDetails TravelDetails  `json:"travelDetails"`
	Expenses      []ExpenseInput `json:"expenses"`
}

// toDraft builds the unsaved claim
func (r *CreateClaimRequest) toDraft() *entity.Claim {
	claim := &entity.Claim{
		EmployeeID:   r.EmployeeInfo.EmployeeID,
		EmployeeName: utils.SanitizeString(r.EmployeeInfo.Name),
		Department:   utils.SanitizeString(r.EmployeeInfo.Department),
		Company:      utils.SanitizeString(r.EmployeeInfo.Company),
		TravelFrom:   utils.SanitizeString(r.TravelDetails.From),
		TravelTo:     utils.SanitizeString(r.TravelDetails.To),
		Purpose:      utils.SanitizeString(r.TravelDetails.Purpose),
		TravelDate:   r.TravelDetails.StartDate.Time,
		ReturnDate:   r.TravelDetails.EndDate.Time,
		Expenses:     make([]entity.Expense, 0, len(r.Expenses)),
	}
	for _, e := range r.Expenses {
		claim.Expenses = append(claim.Expenses, entity.Expense{
			Type:        e.Type,
			Amount:      e.Amount,
			Description: utils.SanitizeString(e.Description),
		})
	}
	return claim
}

// CommentRequest is the optional body of forward, approve and reject
type CommentRequest struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

func (r CommentRequest) text() string {
	if r.Reason != "" {
		return r.Reason
	}
	return r.Comment
}

// OverrideStatusRequest is the body of PUT /api/claims/:id/status
type OverrideStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// BankDetailsInput carries payout coordinates nested under "bankDetails"
type BankDetailsInput struct {
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode" binding:"omitempty,ifsc"`
	UPIID             string `json:"upiId" binding:"omitempty,upi"`
}

// MarkPaidRequest is the body of PATCH /api/claims/:id/mark-paid. Payout
// coordinates may be sent flat or nested under bankDetails.
type MarkPaidRequest struct {
	PaymentMethod     string            `json:"paymentMethod"`
	TransactionID     string            `json:"transactionId"`
	Remarks           string            `json:"remarks"`
	UPIID             string            `json:"upiId"`
	AccountHolderName string            `json:"accountHolderName"`
	AccountNumber     string            `json:"accountNumber"`
	IFSCCode          string            `json:"ifscCode"`
	BankDetails       *BankDetailsInput `json:"bankDetails"`
}

func (r *MarkPaidRequest) toConfirmation() reimbursement.Confirmation {
	c := reimbursement.Confirmation{
		PaymentMethod:     r.PaymentMethod,
		TransactionID:     r.TransactionID,
		Remarks:           r.Remarks,
		UPIID:             r.UPIID,
		AccountHolderName: r.AccountHolderName,
		AccountNumber:     r.AccountNumber,
		IFSCCode:          r.IFSCCode,
	}
	if bd := r.BankDetails; bd != nil {
		c.UPIID = firstNonEmpty(c.UPIID, bd.UPIID)
		c.AccountHolderName = firstNonEmpty(c.AccountHolderName, bd.AccountHolderName)
		c.AccountNumber = firstNonEmpty(c.AccountNumber, bd.AccountNumber)
		c.IFSCCode = firstNonEmpty(c.IFSCCode, bd.IFSCCode)
	}
	return c
}

// ProcessPaymentRequest is the optional body of POST /api/claims/:id/process-payment
type ProcessPaymentRequest struct {
	Remarks string `json:"remarks"`
}

// SettleAttemptRequest is the body of PATCH /api/claims/:id/payouts/:attemptId
type SettleAttemptRequest struct {
	Status     string `json:"status" binding:"required,oneof=CONFIRMED FAILED"`
	TransferID string `json:"transferId"`
	Reason     string `json:"reason"`
	Remarks    string `json:"remarks"`
}

func (r *SettleAttemptRequest) toOutcome() service.AttemptOutcome {
	return service.AttemptOutcome{
		Confirmed:  r.Status == entity.PayoutStatusConfirmed,
		TransferID: r.TransferID,
		Reason:     r.Reason,
		Remarks:    r.Remarks,
	}
}

// DirectPayoutRequest is the body of POST /api/payouts/process
type DirectPayoutRequest struct {
	ClaimID      string            `json:"claimId"`
	Name         string            `json:"name"`
	EmployeeName string            `json:"employeeName"`
	Amount       decimal.Decimal   `json:"amount" binding:"required,gt=0"`
	Method       string            `json:"method"`
	UPIID        string            `json:"upiId" binding:"omitempty,upi"`
	BankDetails  *BankDetailsInput `json:"bankDetails"`
}

func (r *DirectPayoutRequest) toPayoutRequest() *entity.PayoutRequest {
	req := &entity.PayoutRequest{
		Reference: r.ClaimID,
		Name:      strings.TrimSpace(firstNonEmpty(r.Name, r.EmployeeName)),
		Amount:    r.Amount,
		UPIID:     strings.TrimSpace(r.UPIID),
	}

	if bd := r.BankDetails; bd != nil {
		req.UPIID = firstNonEmpty(req.UPIID, strings.TrimSpace(bd.UPIID))
		if bd.AccountNumber != "" {
			req.BankDetails = &entity.BankDetails{
				AccountHolderName: bd.AccountHolderName,
				AccountNumber:     bd.AccountNumber,
				IFSCCode:          bd.IFSCCode,
			}
		}
	}

	method, ok := entity.ParsePaymentMethod(r.Method)
	switch {
	case ok:
		req.Method = method
	case req.UPIID != "":
		req.Method = entity.MethodUPI
	case req.BankDetails != nil:
		req.Method = entity.MethodBankTransfer
	}
	return req
}

// PayoutResponse is returned by POST /api/payouts/process
type PayoutResponse struct {
	TransferID string `json:"transferId"`
	Name       string `json:"name"`
	UPIID      string `json:"upiId,omitempty"`
	Amount     string `json:"amount"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
