package workflow

// Trigger represents an actor action that can cause a state transition
type Trigger string

const (
	TriggerSubmit               Trigger = "SUBMIT"
	TriggerForward              Trigger = "FORWARD"
	TriggerApprove              Trigger = "APPROVE"
	TriggerReject               Trigger = "REJECT"
	TriggerRequestReimbursement Trigger = "REQUEST_REIMBURSEMENT"
	TriggerMarkPaid             Trigger = "MARK_PAID"
	TriggerOverride             Trigger = "ADMIN_OVERRIDE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
