package workflow

// submissionTable holds the moves of the bulk submission workflow. COMPLETE has none.
var submissionTable = NewTable().
	Allow(StateLoading, TriggerLoaded, StateReviewing).
	AllowWhen(StateReviewing, TriggerBegin, StateAwaitingConfirmation, hasNext).
	AllowWhen(StateReviewing, TriggerBegin, StateComplete, isLast).
	Allow(StateReviewing, TriggerStop, StateComplete).
	Allow(StateAwaitingConfirmation, TriggerConfirm, StateSubmitting).
	AllowWhen(StateAwaitingConfirmation, TriggerSkip, StateAwaitingConfirmation, hasNext).
	AllowWhen(StateAwaitingConfirmation, TriggerSkip, StateComplete, isLast).
	Allow(StateAwaitingConfirmation, TriggerStop, StateComplete).
	AllowWhen(StateSubmitting, TriggerSubmitted, StateAwaitingConfirmation, hasNext).
	AllowWhen(StateSubmitting, TriggerSubmitted, StateComplete, isLast)

func hasNext(evt Event) bool { return evt.HasNext() }
func isLast(evt Event) bool  { return !evt.HasNext() }

// Transition computes the state reached from `from` when evt fires.
// The error wraps ErrInvalidTransition when evt is not allowed.
func Transition(from State, evt Event) (State, error) {
	return submissionTable.Next(from, evt)
}

// Permitted lists the triggers accepted in the given state
func Permitted(from State) []Trigger {
	if !from.IsValid() {
		return nil
	}
	return submissionTable.Triggers(from)
}
