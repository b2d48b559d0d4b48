package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Claim represents one employee's travel expense reimbursement request
type Claim struct {
	ID           string `json:"_id"`
	EmployeeID   string `json:"employeeId"`
	EmployeeName string `json:"employeeName"`
	Department   string `json:"department"`
	Company      string `json:"company"`

	TravelFrom string    `json:"travelFrom"`
	TravelTo   string    `json:"travelTo"`
	Purpose    string    `json:"purpose"`
	TravelDate time.Time `json:"travelDate"`
	ReturnDate time.Time `json:"returnDate"`

	Expenses []Expense `json:"expenses"`

	Status ClaimStatus `json:"status"`

	ReimbursementRequested   bool               `json:"reimbursementRequested"`
	ReimbursementRequestedAt *time.Time         `json:"reimbursementRequestedAt"`
	PaidAt                   *time.Time         `json:"paidAt"`
	PaymentMode              *PaymentMode       `json:"paymentMode"`
	ReimbursementInfo        *ReimbursementInfo `json:"reimbursementInfo,omitempty"`

	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expense is a single line item within a claim
type Expense struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ReceiptPath string          `json:"receiptPath,omitempty"`
}

// ReimbursementInfo holds the payout details supplied by the employee and,
// once paid, the external transaction reference
type ReimbursementInfo struct {
	Method        PaymentMethod `json:"method"`
	TransactionID string        `json:"transactionId,omitempty"`
	Remarks       string        `json:"remarks"`
	UPIID         string        `json:"upiId,omitempty"`
	BankDetails   *BankDetails  `json:"bankDetails,omitempty"`
}

// BankDetails are the account coordinates for a bank transfer
type BankDetails struct {
	AccountHolderName string `json:"accountHolderName"`
	AccountNumber     string `json:"accountNumber"`
	IFSCCode          string `json:"ifscCode"`
}

// IsOwnedBy reports whether the claim belongs to the given employee id
func (c *Claim) IsOwnedBy(employeeID string) bool {
	return employeeID != "" && c.EmployeeID == employeeID
}

// TotalAmount sums every expense amount
func (c *Claim) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range c.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Clone returns a deep copy so transition functions never mutate the stored snapshot
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.Expenses = append([]Expense(nil), c.Expenses...)
	if c.ReimbursementRequestedAt != nil {
		t := *c.ReimbursementRequestedAt
		out.ReimbursementRequestedAt = &t
	}
	if c.PaidAt != nil {
		t := *c.PaidAt
		out.PaidAt = &t
	}
	if c.PaymentMode != nil {
		m := *c.PaymentMode
		out.PaymentMode = &m
	}
	out.ReimbursementInfo = c.ReimbursementInfo.Clone()
	return &out
}

// Clone returns a deep copy of the reimbursement info
func (r *ReimbursementInfo) Clone() *ReimbursementInfo {
	if r == nil {
		return nil
	}
	out := *r
	if r.BankDetails != nil {
		bd := *r.BankDetails
		out.BankDetails = &bd
	}
	return &out
}
