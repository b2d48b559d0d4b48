package workflow

import (
	"fmt"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

// CanTransition reports whether the actor may fire the trigger against the claim.
// It only checks role and ownership; whether the claim's state permits the
// trigger is decided by the state machine.
func CanTransition(actor entity.Actor, claim *entity.Claim, trigger Trigger) bool {
	if claim == nil || !actor.Role.IsValid() {
		return false
	}

	switch trigger {
	case TriggerSubmit:
		return actor.Role == entity.RoleEmployee && actor.EmployeeID != ""
	case TriggerForward:
		return actor.Role == entity.RoleHR
	case TriggerReject:
		switch claim.Status {
		case StatePending:
			return actor.Role == entity.RoleHR
		case StateForwarded:
			return actor.Role == entity.RoleDirector
		default:
			return actor.Role == entity.RoleHR || actor.Role == entity.RoleDirector
		}
	case TriggerApprove:
		return actor.Role == entity.RoleDirector
	case TriggerRequestReimbursement:
		return actor.Role == entity.RoleEmployee && claim.IsOwnedBy(actor.EmployeeID)
	case TriggerMarkPaid:
		return actor.Role == entity.RoleOffice
	case TriggerOverride:
		return actor.Role == entity.RoleHR || actor.Role == entity.RoleDirector
	default:
		return false
	}
}

// Authorize is CanTransition returning apperr.ErrForbidden on deny
func Authorize(actor entity.Actor, claim *entity.Claim, trigger Trigger) error {
	if CanTransition(actor, claim, trigger) {
		return nil
	}
	return fmt.Errorf("%w: role %q may not %s this claim", apperr.ErrForbidden, actor.Role, trigger)
}

// CanView reports whether the actor may read the claim
func CanView(actor entity.Actor, claim *entity.Claim) bool {
	if claim == nil {
		return false
	}
	if actor.Role.IsStaff() {
		return true
	}
	return actor.Role == entity.RoleEmployee && claim.IsOwnedBy(actor.EmployeeID)
}
