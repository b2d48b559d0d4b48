package workflow

import (
	"context"

	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/domain/reimbursement"
)

// WorkflowEngine applies claim lifecycle transitions.
//
// Every transition checks the caller against the claim policy, fires the state
// machine, validates the payload and then writes the claim (compare-and-swap on
// its revision) together with a history row in one transaction.
type WorkflowEngine interface {
	// Submit validates a new claim and stores it as Pending. A draft without an
	// id gets a fresh one.
	Submit(ctx context.Context, actor entity.Actor, draft *entity.Claim) (*entity.Claim, error)

	// Forward moves a Pending claim to the director (hr)
	Forward(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error)

	// Approve approves a forwarded claim (director)
	Approve(ctx context.Context, actor entity.Actor, claimID, comment string) (*entity.Claim, error)

	// Reject rejects a Pending claim (hr) or a forwarded claim (director)
	Reject(ctx context.Context, actor entity.Actor, claimID, reason string) (*entity.Claim, error)

	// RequestReimbursement attaches payout details to an approved claim (owner)
	RequestReimbursement(ctx context.Context, actor entity.Actor, claimID string, req reimbursement.Request) (*entity.Claim, error)

	// MarkPaid confirms the payout of a claim (office). Replaying the transaction id
	// that already paid the claim returns the stored claim unchanged.
	MarkPaid(ctx context.Context, actor entity.Actor, claimID string, c reimbursement.Confirmation) (*entity.Claim, error)

	// OverrideStatus sets any status on a non-terminal claim without consulting the
	// state machine (hr, director). The history row is flagged ADMIN_OVERRIDE.
	OverrideStatus(ctx context.Context, actor entity.Actor, claimID string, status entity.ClaimStatus, reason string) (*entity.Claim, error)
}
