package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/fbr-submission/internal/domain/entity"
)

// Payload keys used by run lifecycle events
const (
	KeyTotal     = "total"
	KeySucceeded = "succeeded"
	KeyFailed    = "failed"
	KeySkipped   = "skipped"
	KeyStopped   = "stopped"
	KeyEligible  = "eligible"
)

// Event represents a submission run event
type Event struct {
	ID            string                  `json:"id"`
	Type          Type                    `json:"type"`
	RunID         string                  `json:"run_id"`
	CompanyID     string                  `json:"company_id"`
	Mode          entity.SubmissionMode   `json:"mode"`
	Result        *entity.ProcessResult   `json:"result,omitempty"`
	Results       []*entity.ProcessResult `json:"results,omitempty"`
	Payload       map[string]interface{}  `json:"payload"`
	Timestamp     time.Time               `json:"timestamp"`
	CorrelationID string                  `json:"correlation_id"`
}

// NewEvent creates a new event with auto-generated ID and timestamp.
// The run ID doubles as correlation ID so every event of a run can be joined.
func NewEvent(eventType Type, runID, companyID string, mode entity.SubmissionMode, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		RunID:         runID,
		CompanyID:     companyID,
		Mode:          mode,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: runID,
	}
}

// NewResultEvent creates a result_recorded event for one invoice outcome
func NewResultEvent(runID, companyID string, mode entity.SubmissionMode, result *entity.ProcessResult) *Event {
	evt := NewEvent(TypeResultRecorded, runID, companyID, mode, nil)
	evt.Result = result
	return evt
}

// WithPayload returns a new Event with an added payload key-value pair (immutable operation)
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	cp := *e
	cp.Payload = newPayload
	return &cp
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	if val, ok := e.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}
