package store

import "context"

// Effect is an immutable instruction for a side effect to run after a
// state transition, tagged by Kind. Effects execute in the order the
// transition returned them, each awaited before the next starts.
type Effect interface {
	// Kind selects the handler the effect is dispatched to.
	Kind() string
}

// EffectHandler performs one effect. Errors propagate out of Dispatch
// to the caller; there is no automatic retry.
type EffectHandler func(ctx context.Context, effect Effect) error

// BasicEffect is a ready-made Effect carrying an optional payload.
type BasicEffect struct {
	EffectKind string
	Payload    any
}

// Kind returns the effect discriminator.
func (e BasicEffect) Kind() string { return e.EffectKind }
