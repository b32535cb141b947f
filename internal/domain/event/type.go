package event

// Type identifies the type of domain event
type Type string

const (
	TypeRunStarted     Type = "submission.run_started"
	TypeResultRecorded Type = "submission.result_recorded"
	TypeRunCompleted   Type = "submission.run_completed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRunStarted,
		TypeResultRecorded,
		TypeRunCompleted:
		return true
	default:
		return false
	}
}
