// Package store implements a single-writer unidirectional state store.
//
// Each store owns one immutable state value. Callers submit Actions via
// Dispatch; a user-supplied pure transition function computes the next
// state plus a list of Effects. The whole pipeline (middleware chain,
// transition, state publication, and effect execution) runs under a
// single mutex, so dispatches to one store are totally ordered.
//
// State values are compared by identity, not deep equality: a transition
// that returns the same instance is a no-op and publishes nothing. Every
// state change increments the version counter by exactly one; version
// assignment happens inside the store after the transition, so user code
// never manages versions.
//
// Effects returned by a transition execute sequentially after the new
// state is published, each routed to at most one handler keyed by the
// effect's Kind. An effect kind with no registered handler is silently
// skipped, keeping modules decoupled.
package store
