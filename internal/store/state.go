package store

import "time"

// State is the constraint satisfied by every store state type.
//
// State types must be pointer-shaped (or otherwise cheaply comparable):
// the store decides whether a transition changed anything by comparing
// instances for identity, never by deep equality. WithVersion returns a
// copy of the value with only the version replaced; the original must be
// left untouched.
type State[S any] interface {
	comparable

	// ID uniquely identifies this state within the process.
	ID() string

	// Version is the monotonically increasing change counter.
	Version() uint64

	// WithVersion returns a copy of the state with the version replaced.
	WithVersion(v uint64) S
}

// Action is an immutable, timestamped command describing an intended
// state change. Actions are consumed exactly once by the transition
// function of their owning store.
type Action interface {
	// Type is the discriminator string for this action.
	Type() string

	// OccurredAt is when the action was created.
	OccurredAt() time.Time
}

// BasicAction is a ready-made Action carrying an optional payload.
type BasicAction struct {
	ActionType string
	Payload    any
	At         time.Time
}

// NewAction creates a BasicAction stamped with the current time.
func NewAction(actionType string, payload any) BasicAction {
	return BasicAction{
		ActionType: actionType,
		Payload:    payload,
		At:         time.Now(),
	}
}

// Type returns the action discriminator.
func (a BasicAction) Type() string { return a.ActionType }

// OccurredAt returns the action timestamp.
func (a BasicAction) OccurredAt() time.Time { return a.At }

// TransitionFunc computes the next state for an action.
//
// Implementations must be pure: no side effects, no mutation of the
// incoming state. Side effects are described by the returned Effects and
// executed by the store after publication. Returning the same state
// instance signals "no change".
type TransitionFunc[S State[S]] func(state S, action Action) (S, []Effect, error)
