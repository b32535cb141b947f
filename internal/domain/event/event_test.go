package event

import (
	"testing"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		input    Type
		expected bool
	}{
		{"run started", TypeRunStarted, true},
		{"result recorded", TypeResultRecorded, true},
		{"run completed", TypeRunCompleted, true},
		{"unknown", Type("instance.created"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.IsValid(); got != tt.expected {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{KeyTotal: 3}
	evt := NewEvent(TypeRunStarted, "run-1", "acme", entity.ModePost, payload)

	if evt.ID == "" {
		t.Error("NewEvent() should generate an ID")
	}
	if evt.Type != TypeRunStarted {
		t.Errorf("Type = %v, want %v", evt.Type, TypeRunStarted)
	}
	if evt.CorrelationID != "run-1" {
		t.Errorf("CorrelationID = %v, want run-1", evt.CorrelationID)
	}
	if evt.Timestamp.IsZero() {
		t.Error("NewEvent() should set a timestamp")
	}
	if got := evt.GetPayloadInt(KeyTotal); got != 3 {
		t.Errorf("GetPayloadInt() = %d, want 3", got)
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	evt := NewEvent(TypeRunCompleted, "run-1", "acme", entity.ModeValidate, nil)
	if evt.Payload == nil {
		t.Fatal("payload should be initialised")
	}
	if got := evt.GetPayloadString("missing"); got != "" {
		t.Errorf("GetPayloadString() = %q, want empty", got)
	}
}

func TestNewResultEvent(t *testing.T) {
	result := &entity.ProcessResult{InvoiceID: 7, Outcome: entity.OutcomeSuccess}
	evt := NewResultEvent("run-1", "acme", entity.ModePost, result)

	if evt.Type != TypeResultRecorded {
		t.Errorf("Type = %v, want %v", evt.Type, TypeResultRecorded)
	}
	if evt.Result != result {
		t.Error("NewResultEvent() should carry the result")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeRunCompleted, "run-1", "acme", entity.ModePost, map[string]interface{}{
		KeyStopped: false,
	})

	updated := original.WithPayload(KeyStopped, true)

	if original.GetPayloadBool(KeyStopped) {
		t.Error("WithPayload() must not modify the original event")
	}
	if !updated.GetPayloadBool(KeyStopped) {
		t.Error("WithPayload() should set the new value")
	}
	if updated.ID != original.ID {
		t.Error("WithPayload() should keep the event ID")
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeRunCompleted, "run-1", "acme", entity.ModePost, map[string]interface{}{
		"int":     5,
		"int64":   int64(6),
		"float64": float64(7),
		"string":  "8",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"int", 5},
		{"int64", 6},
		{"float64", 7},
		{"string", 0},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := evt.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%q) = %d, want %d", tt.key, got, tt.want)
			}
		})
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeResultRecorded, "run-1", "acme", entity.ModePost, nil)
		if seen[evt.ID] {
			t.Fatalf("duplicate event ID %s", evt.ID)
		}
		seen[evt.ID] = true
	}
}
