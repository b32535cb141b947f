package workflow

// State represents a step of the bulk submission workflow
type State string

const (
	StateLoading              State = "LOADING"
	StateReviewing            State = "REVIEWING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateSubmitting           State = "SUBMITTING"
	StateComplete             State = "COMPLETE"
)

var validStates = map[State]bool{
	StateLoading:              true,
	StateReviewing:            true,
	StateAwaitingConfirmation: true,
	StateSubmitting:           true,
	StateComplete:             true,
}

var terminalStates = map[State]bool{
	StateComplete: true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
