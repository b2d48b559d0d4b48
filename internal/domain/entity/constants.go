package entity

import "strings"

// ClaimStatus is the persisted lifecycle status of a claim
type ClaimStatus string

// Status constants for Claim. Values match the stored wire format.
const (
	StatusPending                ClaimStatus = "Pending"
	StatusForwarded              ClaimStatus = "Forwarded to Director"
	StatusApproved               ClaimStatus = "Approved"
	StatusRejected               ClaimStatus = "Rejected"
	StatusReimbursementRequested ClaimStatus = "Reimbursement Requested"
	StatusPaid                   ClaimStatus = "Paid"
)

// AllStatuses lists every status in lifecycle order
var AllStatuses = []ClaimStatus{
	StatusPending,
	StatusForwarded,
	StatusApproved,
	StatusRejected,
	StatusReimbursementRequested,
	StatusPaid,
}

var statusAliases = map[string]ClaimStatus{
	"pending":                 StatusPending,
	"forwarded":               StatusForwarded,
	"forwarded to director":   StatusForwarded,
	"approved":                StatusApproved,
	"rejected":                StatusRejected,
	"reimbursementrequested":  StatusReimbursementRequested,
	"reimbursement requested": StatusReimbursementRequested,
	"paid":                    StatusPaid,
}

// ParseClaimStatus accepts the wire value or its compact form (e.g. "ReimbursementRequested")
func ParseClaimStatus(s string) (ClaimStatus, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// String returns the string representation of the status
func (s ClaimStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the enumerated statuses
func (s ClaimStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no guarded transition leaves the status
func (s ClaimStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusPaid
}

// PaymentMethod is the payout channel chosen by the employee
type PaymentMethod string

// Payment method constants
const (
	MethodUPI          PaymentMethod = "UPI"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodCash         PaymentMethod = "Cash"
)

var methodAliases = map[string]PaymentMethod{
	"upi":           MethodUPI,
	"bank transfer": MethodBankTransfer,
	"banktransfer":  MethodBankTransfer,
	"cash":          MethodCash,
}

// ParsePaymentMethod accepts the wire value or its compact form ("BankTransfer")
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	method, ok := methodAliases[strings.ToLower(strings.TrimSpace(s))]
	return method, ok
}

// String returns the string representation of the method
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentMode is derived from the payment method at payment confirmation
type PaymentMode string

// Payment mode constants
const (
	PaymentModeOnline  PaymentMode = "Online"
	PaymentModeOffline PaymentMode = "Offline"
)

// Role is the caller role supplied by the identity oracle
type Role string

// Role constants
const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleDirector Role = "director"
	RoleOffice   Role = "office"
)

// IsValid returns true if the role is one of the four known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleHR, RoleDirector, RoleOffice:
		return true
	default:
		return false
	}
}

// IsStaff reports whether the role may read every claim
func (r Role) IsStaff() bool {
	return r == RoleHR || r == RoleDirector || r == RoleOffice
}

// History action types
const (
	ActionSubmit               = "SUBMIT"
	ActionForward              = "FORWARD"
	ActionApprove              = "APPROVE"
	ActionReject               = "REJECT"
	ActionRequestReimbursement = "REQUEST_REIMBURSEMENT"
	ActionMarkPaid             = "MARK_PAID"
	ActionAdminOverride        = "ADMIN_OVERRIDE"
)

// Payout attempt status constants
const (
	PayoutStatusRequested = "REQUESTED"
	PayoutStatusConfirmed = "CONFIRMED"
	PayoutStatusFailed    = "FAILED"
)

// Expense category constants (free-form tags are accepted as well)
const (
	ExpenseTypeTravel        = "Travel"
	ExpenseTypeAccommodation = "Accommodation"
	ExpenseTypeMeal          = "Food"
	ExpenseTypeLocal         = "Local Conveyance"
	ExpenseTypeOther         = "Other"
)
