package store

import "errors"

// Sentinel errors for the store.
var (
	// ErrNilAction is returned when Dispatch is called with a nil action.
	ErrNilAction = errors.New("action cannot be nil")

	// ErrNilTransition is returned by New when no transition function is given.
	ErrNilTransition = errors.New("transition function cannot be nil")

	// ErrNilHandler is returned when a nil effect handler is registered.
	ErrNilHandler = errors.New("effect handler cannot be nil")
)
