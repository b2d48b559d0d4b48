package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeClaimSubmitted, true},
		{"paid", TypeClaimPaid, true},
		{"override", TypeStatusOverridden, true},
		{"payout failed", TypePayoutFailed, true},
		{"unknown type", Type("unknown.type"), false},
		{"empty string", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeClaimApproved, "claim-1", "dir-1", map[string]interface{}{
		"new_status": "Approved",
	})

	if event == nil {
		t.Fatal("NewEvent() returned nil")
	}
	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeClaimApproved {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeClaimApproved)
	}
	if event.ClaimID != "claim-1" {
		t.Errorf("Event ClaimID = %v, want %v", event.ClaimID, "claim-1")
	}
	if event.ActorID != "dir-1" {
		t.Errorf("Event ActorID = %v, want %v", event.ActorID, "dir-1")
	}
	if event.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeClaimPaid, "claim-9", "off-1", nil, "req-123")
	if event.CorrelationID != "req-123" {
		t.Errorf("Event CorrelationID = %v, want %v", event.CorrelationID, "req-123")
	}

	event = NewEventWithCorrelation(TypeClaimPaid, "claim-9", "off-1", nil, "")
	if event.CorrelationID != event.ID {
		t.Error("empty correlation id should fall back to the event id")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeClaimSubmitted, "c1", "EMP001", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("Modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.ClaimID != original.ClaimID {
		t.Error("Modified event should keep identity fields")
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestEvent_GetPayload(t *testing.T) {
	event := NewEvent(TypeClaimSubmitted, "c1", "EMP001", map[string]interface{}{
		"status":   "Pending",
		"amount":   stringer("1500"),
		"number":   123,
		"override": true,
	})

	if got := event.GetPayloadString("status"); got != "Pending" {
		t.Errorf("GetPayloadString(status) = %v", got)
	}
	if got := event.GetPayloadString("amount"); got != "1500" {
		t.Errorf("GetPayloadString(amount) = %v", got)
	}
	if got := event.GetPayloadString("number"); got != "" {
		t.Errorf("GetPayloadString(number) = %v, want empty", got)
	}
	if !event.GetPayloadBool("override") {
		t.Error("GetPayloadBool(override) = false, want true")
	}
	if event.GetPayloadBool("missing") {
		t.Error("GetPayloadBool(missing) = true, want false")
	}
}
