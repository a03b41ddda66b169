package store

import "context"

// Middleware wraps the transition pipeline of a store.
//
// A middleware receives the state as it was when the dispatch entered the
// pipeline, the action being dispatched, and a next function that invokes
// the remainder of the chain. Middleware may inspect state and action
// before and after calling next; not calling next short-circuits the
// transition entirely.
//
// The first middleware registered with Use is outermost: it wraps every
// later-registered middleware and the core transition.
type Middleware[S State[S]] func(ctx context.Context, state S, action Action, next func(context.Context) error) error

// composeMiddleware builds the call chain around core, first-registered
// outermost. state and action are fixed for the duration of one dispatch.
func composeMiddleware[S State[S]](mws []Middleware[S], state S, action Action, core func(context.Context) error) func(context.Context) error {
	chain := core
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		inner := chain
		chain = func(ctx context.Context) error {
			return mw(ctx, state, action, inner)
		}
	}
	return chain
}
