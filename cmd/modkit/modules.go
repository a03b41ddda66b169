package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kstrand/modkit/internal/config"
	"github.com/kstrand/modkit/internal/event"
	"github.com/kstrand/modkit/internal/host"
	"github.com/kstrand/modkit/internal/module"
	"github.com/kstrand/modkit/internal/service"
	"github.com/kstrand/modkit/internal/store"
)

// The demo ships two native modules: a counter wired through a Store
// with a persistence effect, and a status panel that watches lifecycle
// notifications on the bus.

const (
	actionAdjust  = "counter.adjust"
	effectPersist = "counter.persist"
)

// counterState is the counter module's immutable state.
type counterState struct {
	version uint64
	count   int
}

func (s *counterState) ID() string      { return "counter" }
func (s *counterState) Version() uint64 { return s.version }

func (s *counterState) WithVersion(v uint64) *counterState {
	c := *s
	c.version = v
	return &c
}

func counterTransition(s *counterState, a store.Action) (*counterState, []store.Effect, error) {
	switch a.Type() {
	case actionAdjust:
		ba, ok := a.(store.BasicAction)
		if !ok {
			return s, nil, nil
		}
		delta, _ := ba.Payload.(int)
		if delta == 0 {
			return s, nil, nil
		}
		next := *s
		next.count += delta
		return &next, []store.Effect{store.BasicEffect{EffectKind: effectPersist, Payload: next.count}}, nil
	default:
		return s, nil, nil
	}
}

// counterModule demonstrates the store pipeline end to end: key presses
// become actions, the transition produces a persistence effect, and the
// effect handler writes the count back through the config provider.
type counterModule struct {
	logger *log.Logger
	rt     *module.Runtime
	store  *store.Store[*counterState]
}

func newCounterModule(logger *log.Logger) *counterModule {
	return &counterModule{logger: logger}
}

func (m *counterModule) Name() string           { return "counter" }
func (m *counterModule) Version() string        { return "1.0.0" }
func (m *counterModule) Dependencies() []string { return nil }

func (m *counterModule) RegisterServices(scope *service.Container) error { return nil }

func (m *counterModule) Initialize(ctx context.Context, rt *module.Runtime) error {
	m.rt = rt

	initial := &counterState{}
	if rt.Config != nil {
		if cfg, ok := rt.Config.ModuleConfig(m.Name()); ok {
			if v, ok := cfg.Settings["count"].(float64); ok {
				initial.count = int(v)
			}
		}
	}

	st, err := store.New(m.Name(), initial, counterTransition, store.WithLogger(m.logger))
	if err != nil {
		return err
	}

	st.Use(func(ctx context.Context, s *counterState, a store.Action, next func(context.Context) error) error {
		m.logger.Debug("counter action", "type", a.Type(), "version", s.Version())
		return next(ctx)
	})

	if err := st.HandleEffect(effectPersist, m.persistCount); err != nil {
		return err
	}

	m.store = st
	return nil
}

func (m *counterModule) persistCount(ctx context.Context, eff store.Effect) error {
	if m.rt.Config == nil {
		return nil
	}
	be, ok := eff.(store.BasicEffect)
	if !ok {
		return nil
	}
	count, _ := be.Payload.(int)

	cfg, _ := m.rt.Config.ModuleConfig(m.Name())
	cfg.Enabled = true
	if cfg.Settings == nil {
		cfg.Settings = make(map[string]any)
	}
	cfg.Settings["count"] = count

	if err := m.rt.Config.SetModuleConfig(m.Name(), cfg); err != nil {
		return err
	}
	return m.rt.Config.Save()
}

// Adjust dispatches a delta to the counter store.
func (m *counterModule) Adjust(ctx context.Context, delta int) error {
	return m.store.Dispatch(ctx, store.NewAction(actionAdjust, delta))
}

func (m *counterModule) DrawUI(f *host.Frame) {
	s := m.store.State()
	f.Printf("counter: %d  (state v%d)", s.count, s.Version())
	f.Println("  keys: + / - adjust")
}

func (m *counterModule) DrawConfiguration(f *host.Frame) {
	f.Println("counter settings")
	if m.rt.Config != nil {
		if cfg, ok := m.rt.Config.ModuleConfig(m.Name()); ok {
			f.Printf("  persisted: %v", cfg.Settings)
		}
	}
}

func (m *counterModule) Dispose() error { return nil }

// statusModule shows recent lifecycle activity. It subscribes with
// replay so events published before it loaded still appear.
type statusModule struct {
	logger *log.Logger

	mu     sync.Mutex
	recent []string
	subs   []*event.Subscription
}

func newStatusModule(logger *log.Logger) *statusModule {
	return &statusModule{logger: logger}
}

func (m *statusModule) Name() string           { return "status" }
func (m *statusModule) Version() string        { return "1.0.0" }
func (m *statusModule) Dependencies() []string { return nil }

func (m *statusModule) RegisterServices(scope *service.Container) error { return nil }

func (m *statusModule) Initialize(ctx context.Context, rt *module.Runtime) error {
	if rt.Bus == nil {
		return nil
	}

	sub, err := rt.Bus.SubscribeReplay(module.TopicLoaded, 8, func(msg event.Message) {
		if lm, ok := msg.(module.LoadedMessage); ok {
			m.push(fmt.Sprintf("loaded %s %s", lm.Name, lm.Version))
		}
	})
	if err != nil {
		return err
	}
	m.subs = append(m.subs, sub)

	sub, err = rt.Bus.Subscribe(module.TopicUnloaded, func(msg event.Message) {
		if um, ok := msg.(module.UnloadedMessage); ok {
			m.push("unloaded " + um.Name)
		}
	})
	if err != nil {
		return err
	}
	m.subs = append(m.subs, sub)

	sub, err = rt.Bus.Subscribe(config.TopicChanged, func(msg event.Message) {
		if cm, ok := msg.(config.ChangedMessage); ok {
			m.push(fmt.Sprintf("config saved (%d modules changed)", len(cm.Modules)))
		}
	})
	if err != nil {
		return err
	}
	m.subs = append(m.subs, sub)

	return nil
}

func (m *statusModule) push(entry string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, entry)
	if len(m.recent) > 8 {
		m.recent = m.recent[len(m.recent)-8:]
	}
}

func (m *statusModule) DrawUI(f *host.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.Println("recent activity:")
	if len(m.recent) == 0 {
		f.Println("  (none)")
		return
	}
	for _, entry := range m.recent {
		f.Println("  " + entry)
	}
}

func (m *statusModule) DrawConfiguration(f *host.Frame) {
	f.Println("status has no settings")
}

func (m *statusModule) Dispose() error {
	for _, sub := range m.subs {
		sub.Cancel()
	}
	m.subs = nil
	return nil
}
