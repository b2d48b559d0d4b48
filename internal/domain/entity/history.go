package entity

import "time"

// ClaimHistory is one row of the transition journal of a claim
type ClaimHistory struct {
	ID             int64     `json:"id"`
	ClaimID        string    `json:"claimId"`
	ActorID        string    `json:"actorId"`
	ActorRole      Role      `json:"actorRole"`
	PreviousStatus string    `json:"previousStatus"`
	NewStatus      string    `json:"newStatus"`
	ActionType     string    `json:"actionType"`
	ActionData     string    `json:"actionData"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsOverride reports whether the row was written by the administrative status override
func (h *ClaimHistory) IsOverride() bool {
	return h.ActionType == ActionAdminOverride
}
