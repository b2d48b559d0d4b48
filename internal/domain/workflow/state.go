package workflow

import "github.com/garyjia/travel-claims/internal/domain/entity"

// State is a claim lifecycle state. It shares its values with the persisted claim status.
type State = entity.ClaimStatus

const (
	StatePending                State = entity.StatusPending
	StateForwarded              State = entity.StatusForwarded
	StateApproved               State = entity.StatusApproved
	StateRejected               State = entity.StatusRejected
	StateReimbursementRequested State = entity.StatusReimbursementRequested
	StatePaid                   State = entity.StatusPaid
)
