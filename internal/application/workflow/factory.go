package workflow

import (
	"context"

	"github.com/garyjia/travel-claims/internal/domain/entity"
	domainwf "github.com/garyjia/travel-claims/internal/domain/workflow"
)

// BuildClaimStateMachine creates a state machine positioned at the claim's current status.
// Guards read the claim snapshot the machine was built from.
func BuildClaimStateMachine(claim *entity.Claim) domainwf.StateMachine {
	return claimLifecycle(claim).Build(claim.Status)
}

// ClaimLifecycle lists every transition a claim can take outside an administrative override.
func ClaimLifecycle() []domainwf.Edge {
	return claimLifecycle(&entity.Claim{}).Edges()
}

func claimLifecycle(claim *entity.Claim) domainwf.StateMachineBuilder {
	b := domainwf.NewBuilder()

	// HR decides
	b.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerForward, domainwf.StateForwarded).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	// Director decides
	b.Configure(domainwf.StateForwarded).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected)

	b.Configure(domainwf.StateApproved).
		Permit(domainwf.TriggerRequestReimbursement, domainwf.StateReimbursementRequested)

	// An override can land a claim here without payout details
	b.Configure(domainwf.StateReimbursementRequested).
		PermitIf(domainwf.TriggerMarkPaid, domainwf.StatePaid, func(context.Context) bool {
			return claim.ReimbursementInfo != nil
		})

	return b
}
