package reimbursement

import (
	"strings"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// Confirmation is the office's payment confirmation payload
type Confirmation struct {
	PaymentMethod     string `json:"paymentMethod"`
	TransactionID     string `json:"transactionId"`
	Remarks           string `json:"remarks"`
	UPIID             string `json:"upiId"`
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode"`
}

// DerivePaymentMode is Offline for cash and Online for everything else
func DerivePaymentMode(method entity.PaymentMethod) entity.PaymentMode {
	if method == entity.MethodCash {
		return entity.PaymentModeOffline
	}
	return entity.PaymentModeOnline
}

// Confirm merges the confirmation into the reimbursement info captured at request
// time. Remarks from the request survive unless the confirmation supplies its own,
// and method specific fields are only overwritten by non-empty values. Switching
// method drops the coordinates of the method that was requested.
func Confirm(existing *entity.ReimbursementInfo, c Confirmation) (*entity.ReimbursementInfo, entity.PaymentMode, error) {
	verr := &apperr.ValidationError{}

	transactionID := strings.TrimSpace(c.TransactionID)
	if transactionID == "" {
		verr.Add("transactionId", "is required")
	}

	method, ok := entity.ParsePaymentMethod(c.PaymentMethod)
	if !ok {
		verr.Add("paymentMethod", "invalid or missing payment method")
	}

	if err := verr.OrNil(); err != nil {
		return nil, "", err
	}

	merged := existing.Clone()
	if merged == nil {
		merged = &entity.ReimbursementInfo{}
	}
	merged.Method = method
	merged.TransactionID = transactionID
	if remarks := strings.TrimSpace(c.Remarks); remarks != "" {
		merged.Remarks = remarks
	}

	// Only the confirmed method's coordinates are kept
	switch method {
	case entity.MethodUPI:
		merged.BankDetails = nil
		if upiID := strings.TrimSpace(c.UPIID); upiID != "" {
			merged.UPIID = upiID
		}
	case entity.MethodBankTransfer:
		merged.UPIID = ""
		bd := entity.BankDetails{}
		if merged.BankDetails != nil {
			bd = *merged.BankDetails
		}
		mergeField(&bd.AccountHolderName, c.AccountHolderName)
		mergeField(&bd.AccountNumber, c.AccountNumber)
		mergeField(&bd.IFSCCode, c.IFSCCode)
		merged.BankDetails = nil
		if bd != (entity.BankDetails{}) {
			merged.BankDetails = &bd
		}
	default:
		merged.UPIID = ""
		merged.BankDetails = nil
	}

	return merged, DerivePaymentMode(method), nil
}

func mergeField(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
