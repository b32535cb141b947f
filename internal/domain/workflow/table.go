package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a trigger is not accepted in the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned for states outside the workflow
	ErrInvalidState = errors.New("invalid state")
)

// rule is one allowed move out of a state; when, if set, must accept the event
type rule struct {
	trigger Trigger
	to      State
	when    func(Event) bool
}

// Table is a transition table keyed by source state.
// Rules keep their declaration order and the first accepting rule wins.
type Table struct {
	rules map[State][]rule
}

// NewTable creates an empty transition table
func NewTable() *Table {
	return &Table{rules: make(map[State][]rule)}
}

// Allow adds an unconditional move
func (t *Table) Allow(from State, trigger Trigger, to State) *Table {
	return t.AllowWhen(from, trigger, to, nil)
}

// AllowWhen adds a move taken only when cond accepts the event.
// It panics on states outside the workflow since tables are built at init.
func (t *Table) AllowWhen(from State, trigger Trigger, to State, cond func(Event) bool) *Table {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("workflow: invalid rule %s --%s--> %s", from, trigger, to))
	}
	t.rules[from] = append(t.rules[from], rule{trigger: trigger, to: to, when: cond})
	return t
}

// Next returns the state reached from `from` when evt fires, without side effects
func (t *Table) Next(from State, evt Event) (State, error) {
	if !from.IsValid() {
		return from, fmt.Errorf("%w: %s", ErrInvalidState, from)
	}

	matched := false
	for _, r := range t.rules[from] {
		if r.trigger != evt.Trigger {
			continue
		}
		matched = true
		if r.when == nil || r.when(evt) {
			return r.to, nil
		}
	}

	if matched {
		return from, fmt.Errorf("%w: %s from %s with %d remaining", ErrInvalidTransition, evt.Trigger, from, evt.Remaining)
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, evt.Trigger, from)
}

// Triggers lists the distinct triggers accepted in a state, in declaration order
func (t *Table) Triggers(from State) []Trigger {
	out := make([]Trigger, 0, 3)
	seen := make(map[Trigger]bool)
	for _, r := range t.rules[from] {
		if !seen[r.trigger] {
			seen[r.trigger] = true
			out = append(out, r.trigger)
		}
	}
	return out
}
