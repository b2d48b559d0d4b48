package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/travel-claims/internal/domain/apperr"
	"github.com/garyjia/travel-claims/internal/domain/entity"
)

func TestCanTransition(t *testing.T) {
	owner := entity.Actor{EmployeeID: "EMP001", Role: entity.RoleEmployee}
	stranger := entity.Actor{EmployeeID: "EMP002", Role: entity.RoleEmployee}
	hr := entity.Actor{UserID: "hr-1", Role: entity.RoleHR}
	director := entity.Actor{UserID: "dir-1", Role: entity.RoleDirector}
	office := entity.Actor{UserID: "off-1", Role: entity.RoleOffice}

	claimIn := func(status State) *entity.Claim {
		return &entity.Claim{ID: "c1", EmployeeID: "EMP001", Status: status}
	}

	tests := []struct {
		name    string
		actor   entity.Actor
		status  State
		trigger Trigger
		want    bool
	}{
		{"employee submits", owner, StatePending, TriggerSubmit, true},
		{"hr cannot submit", hr, StatePending, TriggerSubmit, false},
		{"hr forwards", hr, StatePending, TriggerForward, true},
		{"director cannot forward", director, StatePending, TriggerForward, false},
		{"hr rejects pending", hr, StatePending, TriggerReject, true},
		{"director cannot reject pending", director, StatePending, TriggerReject, false},
		{"director rejects forwarded", director, StateForwarded, TriggerReject, true},
		{"hr cannot reject forwarded", hr, StateForwarded, TriggerReject, false},
		{"director approves", director, StateForwarded, TriggerApprove, true},
		{"hr cannot approve", hr, StateForwarded, TriggerApprove, false},
		{"owner requests reimbursement", owner, StateApproved, TriggerRequestReimbursement, true},
		{"other employee cannot request", stranger, StateApproved, TriggerRequestReimbursement, false},
		{"office cannot request", office, StateApproved, TriggerRequestReimbursement, false},
		{"office marks paid", office, StateReimbursementRequested, TriggerMarkPaid, true},
		{"director cannot mark paid", director, StateReimbursementRequested, TriggerMarkPaid, false},
		{"hr overrides", hr, StatePaid, TriggerOverride, true},
		{"director overrides", director, StateRejected, TriggerOverride, true},
		{"office cannot override", office, StatePending, TriggerOverride, false},
		{"unknown role", entity.Actor{Role: "admin"}, StatePending, TriggerForward, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.actor, claimIn(tt.status), tt.trigger))
		})
	}
}

func TestAuthorize_ReturnsForbidden(t *testing.T) {
	err := Authorize(entity.Actor{Role: entity.RoleOffice}, &entity.Claim{Status: StatePending}, TriggerForward)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	assert.NoError(t, Authorize(entity.Actor{Role: entity.RoleHR}, &entity.Claim{Status: StatePending}, TriggerForward))
}

func TestCanView(t *testing.T) {
	claim := &entity.Claim{ID: "c1", EmployeeID: "EMP001"}

	assert.True(t, CanView(entity.Actor{EmployeeID: "EMP001", Role: entity.RoleEmployee}, claim))
	assert.False(t, CanView(entity.Actor{EmployeeID: "EMP002", Role: entity.RoleEmployee}, claim))
	assert.True(t, CanView(entity.Actor{Role: entity.RoleOffice}, claim))
	assert.False(t, CanView(entity.Actor{Role: entity.RoleHR}, nil))
}
