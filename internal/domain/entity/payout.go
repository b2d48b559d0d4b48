package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutAttempt records one call to the payout collaborator.
// A row is written as REQUESTED before the call and settled to CONFIRMED or FAILED after.
type PayoutAttempt struct {
	ID          int64           `json:"id"`
	ClaimID     string          `json:"claimId"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	Beneficiary string          `json:"beneficiary"`
	TransferID  string          `json:"transferId,omitempty"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	RequestedBy string          `json:"requestedBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	SettledAt   *time.Time      `json:"settledAt,omitempty"`
}

// PayoutRequest is the payload handed to the payout collaborator
type PayoutRequest struct {
	Reference   string          `json:"reference"`
	Name        string          `json:"name"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	UPIID       string          `json:"upiId,omitempty"`
	BankDetails *BankDetails    `json:"bankDetails,omitempty"`
}

// PayoutResult is the collaborator's answer
type PayoutResult struct {
	Success    bool   `json:"success"`
	TransferID string `json:"transferId"`
	Message    string `json:"message,omitempty"`
}
