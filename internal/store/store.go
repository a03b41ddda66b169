package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
)

// Store serializes all state mutation for one state type through a
// single pipeline. It is safe for concurrent use; concurrent dispatches
// are applied one at a time in lock-acquisition order.
type Store[S State[S]] struct {
	id         string
	transition TransitionFunc[S]
	logger     *log.Logger

	// mu serializes the whole dispatch pipeline, not just the pure
	// transition: middleware, publication, and effect execution all run
	// under it.
	mu sync.Mutex

	// stateMu guards reads of state while a dispatch is in flight.
	stateMu sync.RWMutex
	state   S

	// regMu guards the registration lists below.
	regMu      sync.RWMutex
	middleware []Middleware[S]
	handlers   map[string]EffectHandler
	actionObs  []observer[Action]
	stateObs   []observer[S]
	nextObsID  uint64
}

// observer pairs a callback with its registration id so unsubscribing
// removes the entry instead of leaving a hole in the slice.
type observer[T any] struct {
	id uint64
	fn func(T)
}

func removeObserver[T any](obs []observer[T], id uint64) []observer[T] {
	for i, o := range obs {
		if o.id == id {
			return slices.Delete(obs, i, i+1)
		}
	}
	return obs
}

// Option configures a Store.
type Option func(*options)

type options struct {
	logger *log.Logger
}

// WithLogger sets the logger used for store warnings.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New creates a store holding initial and driven by transition.
func New[S State[S]](id string, initial S, transition TransitionFunc[S], opts ...Option) (*Store[S], error) {
	if transition == nil {
		return nil, ErrNilTransition
	}

	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Store[S]{
		id:         id,
		transition: transition,
		logger:     o.logger,
		state:      initial,
		handlers:   make(map[string]EffectHandler),
	}, nil
}

// ID returns the store identifier.
func (s *Store[S]) ID() string { return s.id }

// State returns the current state instance.
func (s *Store[S]) State() S {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Version returns the current state version.
func (s *Store[S]) Version() uint64 {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Version()
}

// Use registers a middleware. The first middleware registered is
// outermost and wraps all later-registered middleware plus the core
// transition.
func (s *Store[S]) Use(mw Middleware[S]) {
	if mw == nil {
		return
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()
	s.middleware = append(s.middleware, mw)
}

// HandleEffect associates the handler with an effect kind. Registering a
// kind twice overwrites the previous handler with a warning.
func (s *Store[S]) HandleEffect(kind string, handler EffectHandler) error {
	if handler == nil {
		return ErrNilHandler
	}
	if kind == "" {
		return fmt.Errorf("effect kind cannot be empty")
	}

	s.regMu.Lock()
	defer s.regMu.Unlock()
	if _, exists := s.handlers[kind]; exists {
		s.logger.Warn("effect handler overwritten", "store", s.id, "kind", kind)
	}
	s.handlers[kind] = handler
	return nil
}

// OnAction registers an observer called synchronously for every
// dispatched action, before the transition pipeline runs. The returned
// function removes the observer.
func (s *Store[S]) OnAction(fn func(Action)) func() {
	if fn == nil {
		return func() {}
	}

	s.regMu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.actionObs = append(s.actionObs, observer[Action]{id: id, fn: fn})
	s.regMu.Unlock()

	return func() {
		s.regMu.Lock()
		defer s.regMu.Unlock()
		s.actionObs = removeObserver(s.actionObs, id)
	}
}

// OnState registers an observer called synchronously whenever a dispatch
// produces a state instance distinct from the previous one. The returned
// function removes the observer.
func (s *Store[S]) OnState(fn func(S)) func() {
	if fn == nil {
		return func() {}
	}

	s.regMu.Lock()
	s.nextObsID++
	id := s.nextObsID
	s.stateObs = append(s.stateObs, observer[S]{id: id, fn: fn})
	s.regMu.Unlock()

	return func() {
		s.regMu.Lock()
		defer s.regMu.Unlock()
		s.stateObs = removeObserver(s.stateObs, id)
	}
}

// Dispatch applies one action through the middleware chain, the
// transition, state publication, and effect execution, all under the
// store's exclusive lock. Transition and effect-handler errors propagate
// to the caller; the lock is released on every exit path, so the store
// stays usable after a failed dispatch.
func (s *Store[S]) Dispatch(ctx context.Context, action Action) error {
	if action == nil {
		return ErrNilAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifyAction(action)

	prev := s.state
	var (
		nextState S
		effects   []Effect
		applied   bool
	)

	core := func(ctx context.Context) error {
		ns, effs, err := s.transition(prev, action)
		if err != nil {
			return fmt.Errorf("store %q: transition for action %q: %w", s.id, action.Type(), err)
		}
		nextState, effects, applied = ns, effs, true
		return nil
	}

	s.regMu.RLock()
	mws := make([]Middleware[S], len(s.middleware))
	copy(mws, s.middleware)
	s.regMu.RUnlock()

	if err := composeMiddleware(mws, prev, action, core)(ctx); err != nil {
		return err
	}
	if !applied {
		// A middleware short-circuited by not calling next.
		return nil
	}

	if nextState != prev {
		bumped := nextState.WithVersion(prev.Version() + 1)
		s.stateMu.Lock()
		s.state = bumped
		s.stateMu.Unlock()
		s.notifyState(bumped)
	}

	return s.runEffects(ctx, effects)
}

// runEffects executes effects in order, each awaited before the next.
// An effect kind with no registered handler is skipped silently.
func (s *Store[S]) runEffects(ctx context.Context, effects []Effect) error {
	for _, eff := range effects {
		if eff == nil {
			continue
		}

		s.regMu.RLock()
		handler := s.handlers[eff.Kind()]
		s.regMu.RUnlock()

		if handler == nil {
			continue
		}
		if err := handler(ctx, eff); err != nil {
			return fmt.Errorf("store %q: effect %q: %w", s.id, eff.Kind(), err)
		}
	}
	return nil
}

func (s *Store[S]) notifyAction(action Action) {
	s.regMu.RLock()
	obs := slices.Clone(s.actionObs)
	s.regMu.RUnlock()

	for _, o := range obs {
		o.fn(action)
	}
}

func (s *Store[S]) notifyState(state S) {
	s.regMu.RLock()
	obs := slices.Clone(s.stateObs)
	s.regMu.RUnlock()

	for _, o := range obs {
		o.fn(state)
	}
}
