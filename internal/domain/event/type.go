package event

// Type identifies the type of domain event
type Type string

const (
	TypeClaimSubmitted         Type = "claim.submitted"
	TypeClaimForwarded         Type = "claim.forwarded"
	TypeClaimApproved          Type = "claim.approved"
	TypeClaimRejected          Type = "claim.rejected"
	TypeReimbursementRequested Type = "claim.reimbursement_requested"
	TypeClaimPaid              Type = "claim.paid"
	TypeStatusOverridden       Type = "claim.status_overridden"
	TypePayoutFailed           Type = "payout.failed"
)

// AllTypes lists every event type the service emits
var AllTypes = []Type{
	TypeClaimSubmitted,
	TypeClaimForwarded,
	TypeClaimApproved,
	TypeClaimRejected,
	TypeReimbursementRequested,
	TypeClaimPaid,
	TypeStatusOverridden,
	TypePayoutFailed,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}
