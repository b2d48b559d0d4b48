// Package reimbursement holds the pure validation and merge rules for the
// payout details attached to a claim.
package reimbursement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

var upiPattern = regexp.MustCompile(`^[\w.-]+@[a-zA-Z]+$`)

// Request is the employee's reimbursement request payload
type Request struct {
	Method            string `json:"method"`
	UPIID             string `json:"upiId"`
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode"`
	Remarks           string `json:"remarks"`
}

// Capture validates a reimbursement request against the claim and returns the
// reimbursement info that replaces whatever the claim carried before.
// Every field problem is reported in a single *apperr.ValidationError.
func Capture(claim *entity.Claim, req Request) (*entity.ReimbursementInfo, error) {
	if claim == nil {
		return nil, fmt.Errorf("%w: claim", apperr.ErrNotFound)
	}
	if claim.Status != entity.StatusApproved {
		return nil, fmt.Errorf("%w: claim is %q, reimbursement needs an approved claim", apperr.ErrInvalidState, claim.Status)
	}

	method, ok := entity.ParsePaymentMethod(req.Method)
	if !ok {
		return nil, apperr.NewValidationError("method", "invalid or missing payment method")
	}

	info := &entity.ReimbursementInfo{
		Method:  method,
		Remarks: strings.TrimSpace(req.Remarks),
	}

	verr := &apperr.ValidationError{}
	switch method {
	case entity.MethodUPI:
		upiID := strings.TrimSpace(req.UPIID)
		if upiID == "" {
			verr.Add("upiId", "UPI ID is required")
		}
		info.UPIID = upiID
	case entity.MethodBankTransfer:
		bd := &entity.BankDetails{
			AccountHolderName: strings.TrimSpace(req.AccountHolderName),
			AccountNumber:     strings.TrimSpace(req.AccountNumber),
			IFSCCode:          strings.TrimSpace(req.IFSCCode),
		}
		if bd.AccountHolderName == "" {
			verr.Add("accountHolderName", "is required for bank transfer")
		}
		if bd.AccountNumber == "" {
			verr.Add("accountNumber", "is required for bank transfer")
		}
		if bd.IFSCCode == "" {
			verr.Add("ifscCode", "is required for bank transfer")
		}
		info.BankDetails = bd
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return info, nil
}

// ValidateForPayout checks that stored reimbursement info carries what the payout
// collaborator needs. It is stricter than Capture: UPI ids must be well formed.
func ValidateForPayout(info *entity.ReimbursementInfo) error {
	if info == nil {
		return apperr.NewValidationError("reimbursementInfo", "no payout details on claim")
	}

	verr := &apperr.ValidationError{}
	switch info.Method {
	case entity.MethodUPI:
		if !upiPattern.MatchString(info.UPIID) {
			verr.Add("upiId", "invalid UPI ID format")
		}
	case entity.MethodBankTransfer:
		bd := info.BankDetails
		if bd == nil || bd.AccountHolderName == "" || bd.AccountNumber == "" || bd.IFSCCode == "" {
			verr.Add("bankDetails", "bank details are incomplete")
		}
	case entity.MethodCash:
		verr.Add("method", "cash reimbursements are paid offline")
	default:
		verr.Add("method", "invalid or missing payment method")
	}
	return verr.OrNil()
}
