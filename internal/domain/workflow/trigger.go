package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerLoaded    Trigger = "LOADED"
	TriggerBegin     Trigger = "BEGIN"
	TriggerConfirm   Trigger = "CONFIRM"
	TriggerSkip      Trigger = "SKIP"
	TriggerStop      Trigger = "STOP"
	TriggerSubmitted Trigger = "SUBMITTED"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// Event is a trigger together with the workflow position it fires at.
// Remaining counts eligible invoices left after the current one.
type Event struct {
	Trigger   Trigger
	Remaining int
}

// NewEvent creates an event for the given trigger
func NewEvent(trigger Trigger, remaining int) Event {
	return Event{Trigger: trigger, Remaining: remaining}
}

// HasNext reports whether another invoice follows the current one
func (e Event) HasNext() bool {
	return e.Remaining > 0
}
