package module

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kstrand/modkit/internal/config"
	"github.com/kstrand/modkit/internal/event"
	"github.com/kstrand/modkit/internal/host"
	"github.com/kstrand/modkit/internal/service"
)

// Manager owns the set of currently loaded module instances and keeps
// it consistent with declared dependencies and the enabled/disabled
// configuration.
//
// All mutation runs under one write lock; lifecycle hooks (Initialize,
// Dispose) are called while it is held, so modules must not call back
// into the Manager from those hooks. Bus notifications are published
// after the lock is released.
type Manager struct {
	mu       sync.RWMutex
	registry *Registry
	services *service.Container
	bus      *event.Bus
	config   config.Provider
	logger   *log.Logger

	loaded map[string]*loadedModule
	order  []string
}

// loadedModule pairs a live instance with its scoped service container.
type loadedModule struct {
	module Module
	scope  *service.Container
}

// Report summarizes one reconciliation pass.
type Report struct {
	// Loaded lists modules loaded by this pass, in load order.
	Loaded []string

	// Unloaded lists modules unloaded by this pass, dependents first.
	Unloaded []string

	// Skipped lists enabled modules that could not load in this pass,
	// typically because a dependency is disabled or failed to load. They
	// stay unloaded until a later reconciliation.
	Skipped []string
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithServices sets the global service container modules scope from.
func WithServices(c *service.Container) ManagerOption {
	return func(m *Manager) {
		m.services = c
	}
}

// WithManagerBus sets the bus lifecycle notifications are published on.
func WithManagerBus(bus *event.Bus) ManagerOption {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithConfig sets the configuration provider handed to modules.
func WithConfig(p config.Provider) ManagerOption {
	return func(m *Manager) {
		m.config = p
	}
}

// WithManagerLogger sets the logger for manager warnings.
func WithManagerLogger(l *log.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a manager over the given registry.
func NewManager(registry *Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		logger:   log.Default(),
		loaded:   make(map[string]*loadedModule),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.services == nil {
		m.services = service.New()
	}
	return m
}

// Registry returns the underlying module catalog.
func (m *Manager) Registry() *Registry { return m.registry }

// IsLoaded reports whether a module is currently loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[name]
	return ok
}

// LoadedNames returns the names of loaded modules in load order.
func (m *Manager) LoadedNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Count returns the number of loaded modules.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.loaded)
}

// Get returns a loaded module instance by name.
func (m *Manager) Get(name string) (Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lm, ok := m.loaded[name]
	if !ok {
		return nil, false
	}
	return lm.module, true
}

// Load loads one module instance. Loading a name that is already loaded
// is a warned no-op, not an error. Every declared dependency must
// already be loaded, otherwise Load fails with ErrMissingDependency and
// performs no partial work. Errors from the module's own hooks are
// logged and returned; the loaded set is unchanged on failure.
func (m *Manager) Load(ctx context.Context, mod Module) error {
	m.mu.Lock()
	events, err := m.loadLocked(ctx, mod)
	m.mu.Unlock()

	m.publish(events)
	return err
}

// Unload unloads a module by name; not-loaded names are a no-op. Every
// currently loaded module that depends on it, directly or transitively,
// is unloaded first. Dispose errors are logged, not returned, so a
// misbehaving module cannot wedge the cascade.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	events := m.unloadLocked(ctx, name)
	m.mu.Unlock()

	m.publish(events)
	return nil
}

// UnloadAll unloads every module in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) {
	m.mu.Lock()
	var events []event.Message
	for len(m.order) > 0 {
		last := m.order[len(m.order)-1]
		events = append(events, m.unloadLocked(ctx, last)...)
	}
	m.mu.Unlock()

	m.publish(events)
}

// ApplyConfig reconciles the loaded set against the desired
// configuration: modules that are loaded but disabled are unloaded
// (cascading), then enabled-but-unloaded modules are loaded in registry
// load order. A candidate whose dependency is not both enabled and
// loaded is skipped with a warning rather than failing the batch; it
// stays unloaded until a future reconciliation finds its dependencies
// satisfied. Repeating the call with unchanged configuration performs
// no actions.
func (m *Manager) ApplyConfig(ctx context.Context, cfg config.Provider) (Report, error) {
	m.mu.Lock()
	m.config = cfg

	var report Report
	var events []event.Message

	// Partition first: the load set is decided before any unloading, so
	// enabled modules torn down by a cascade in this pass stay down
	// until the next reconciliation.
	var toUnload []string
	for _, name := range m.order {
		if !m.enabledLocked(name) {
			toUnload = append(toUnload, name)
		}
	}

	toLoad := make(map[string]bool)
	for _, name := range m.registry.Names() {
		if _, isLoaded := m.loaded[name]; !isLoaded && m.enabledLocked(name) {
			toLoad[name] = true
		}
	}

	for _, name := range toUnload {
		evs := m.unloadLocked(ctx, name)
		events = append(events, evs...)
		for _, ev := range evs {
			if um, ok := ev.(UnloadedMessage); ok {
				report.Unloaded = append(report.Unloaded, um.Name)
			}
		}
	}

	for _, d := range m.registry.LoadOrder() {
		if !toLoad[d.Name] {
			continue
		}

		blocked := ""
		for _, dep := range d.Dependencies {
			if !m.enabledLocked(dep) {
				blocked = dep + " is disabled"
				break
			}
			if _, ok := m.loaded[dep]; !ok {
				blocked = dep + " is not loaded"
				break
			}
		}
		if blocked != "" {
			m.logger.Warn("skipping module: dependency not satisfied",
				"module", d.Name, "reason", blocked)
			report.Skipped = append(report.Skipped, d.Name)
			continue
		}

		instance := m.registry.NewInstance(d.Name)
		if instance == nil {
			report.Skipped = append(report.Skipped, d.Name)
			continue
		}

		evs, err := m.loadLocked(ctx, instance)
		events = append(events, evs...)
		if err != nil {
			m.logger.Error("module failed to load during reconciliation",
				"module", d.Name, "error", err)
			report.Skipped = append(report.Skipped, d.Name)
			continue
		}
		report.Loaded = append(report.Loaded, d.Name)
	}
	m.mu.Unlock()

	m.publish(events)
	return report, nil
}

// Dependents returns the loaded modules that directly depend on name.
func (m *Manager) Dependents(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dependentsLocked(name)
}

// AllDependents returns the transitive closure of loaded modules that
// depend on name, discovered breadth-first. The traversal is bounded by
// a visited set, so dependency cycles cannot hang it.
func (m *Manager) AllDependents(name string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visited := map[string]bool{name: true}
	queue := m.dependentsLocked(name)
	var all []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		all = append(all, current)
		queue = append(queue, m.dependentsLocked(current)...)
	}

	sort.Strings(all)
	return all
}

// CanDisable reports whether a module can be disabled without breaking
// loaded modules, along with the loaded dependents that prevent it.
func (m *Manager) CanDisable(name string) (bool, []string) {
	dependents := m.AllDependents(name)
	return len(dependents) == 0, dependents
}

// DrawAll renders every loaded module's UI in load order. A module
// whose draw panics is logged and skipped; the rest still draw.
func (m *Manager) DrawAll(f *host.Frame) {
	for _, mod := range m.snapshot() {
		m.guardedDraw(mod.Name(), f, mod.DrawUI)
	}
}

// DrawConfigurationAll renders every loaded module's settings UI in
// load order, with the same per-module isolation as DrawAll.
func (m *Manager) DrawConfigurationAll(f *host.Frame) {
	for _, mod := range m.snapshot() {
		m.guardedDraw(mod.Name(), f, mod.DrawConfiguration)
	}
}

// loadLocked performs one load. Must be called with mu held.
func (m *Manager) loadLocked(ctx context.Context, mod Module) ([]event.Message, error) {
	if mod == nil {
		return nil, ErrNilModule
	}

	name := mod.Name()
	if _, exists := m.loaded[name]; exists {
		m.logger.Warn("module already loaded", "module", name)
		return nil, nil
	}

	deps := make(map[string]Module, len(mod.Dependencies()))
	for _, dep := range mod.Dependencies() {
		lm, ok := m.loaded[dep]
		if !ok {
			return nil, fmt.Errorf("load module %q: %w: %q", name, ErrMissingDependency, dep)
		}
		deps[dep] = lm.module
	}

	scope := m.services.Child()
	if err := mod.RegisterServices(scope); err != nil {
		m.disposeScope(name, scope, mod)
		err = fmt.Errorf("load module %q: register services: %w", name, err)
		m.logger.Error("module load failed", "module", name, "error", err)
		return nil, err
	}

	rt := &Runtime{
		Services: scope,
		Bus:      m.bus,
		Config:   m.config,
		Deps:     deps,
	}
	if err := mod.Initialize(ctx, rt); err != nil {
		m.disposeScope(name, scope, mod)
		err = fmt.Errorf("load module %q: initialize: %w", name, err)
		m.logger.Error("module load failed", "module", name, "error", err)
		return nil, err
	}

	m.loaded[name] = &loadedModule{module: mod, scope: scope}
	m.order = append(m.order, name)
	m.logger.Info("module loaded", "module", name, "version", mod.Version())

	return []event.Message{LoadedMessage{Name: name, Version: mod.Version()}}, nil
}

// unloadLocked performs one unload with dependent cascade. Must be
// called with mu held.
func (m *Manager) unloadLocked(ctx context.Context, name string) []event.Message {
	lm, ok := m.loaded[name]
	if !ok {
		return nil
	}

	var events []event.Message
	for _, dependent := range m.dependentsLocked(name) {
		events = append(events, m.unloadLocked(ctx, dependent)...)
	}

	// The instance is disposed exactly once here; scope teardown skips
	// it so a module that registered itself as a service is not
	// disposed a second time.
	if err := lm.module.Dispose(); err != nil {
		m.logger.Warn("module dispose failed", "module", name, "error", err)
	}
	if err := lm.scope.DisposeExcept(lm.module); err != nil {
		m.logger.Warn("module scope dispose failed", "module", name, "error", err)
	}

	delete(m.loaded, name)
	if i := slices.Index(m.order, name); i >= 0 {
		m.order = append(m.order[:i], m.order[i+1:]...)
	}
	m.logger.Info("module unloaded", "module", name)

	return append(events, UnloadedMessage{Name: name})
}

// dependentsLocked returns loaded modules that directly depend on name,
// sorted. Must be called with mu held (read or write).
func (m *Manager) dependentsLocked(name string) []string {
	var dependents []string
	for loadedName, lm := range m.loaded {
		if slices.Contains(lm.module.Dependencies(), name) {
			dependents = append(dependents, loadedName)
		}
	}
	sort.Strings(dependents)
	return dependents
}

// enabledLocked resolves the desired enabled state for a module from
// the configuration, falling back to the descriptor default. Must be
// called with mu held.
func (m *Manager) enabledLocked(name string) bool {
	if m.config != nil {
		if mc, ok := m.config.ModuleConfig(name); ok {
			return mc.Enabled
		}
	}
	d, ok := m.registry.Descriptor(name)
	return ok && d.DefaultOn
}

// snapshot returns the loaded module instances in load order.
func (m *Manager) snapshot() []Module {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Module, 0, len(m.order))
	for _, name := range m.order {
		if lm, ok := m.loaded[name]; ok {
			out = append(out, lm.module)
		}
	}
	return out
}

// guardedDraw isolates one module's draw call so a broken module cannot
// take the whole frame down.
func (m *Manager) guardedDraw(name string, f *host.Frame, draw func(*host.Frame)) {
	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("module draw panicked", "module", name, "panic", rec)
			f.Printf("[%s] draw failed: %v", name, rec)
		}
	}()
	draw(f)
}

// disposeScope tears down a scope built for a load that failed. The
// instance itself is skipped; it never finished initializing, so the
// manager never calls its Dispose.
func (m *Manager) disposeScope(name string, scope *service.Container, mod Module) {
	if err := scope.DisposeExcept(mod); err != nil {
		m.logger.Warn("scope dispose failed", "module", name, "error", err)
	}
}

// publish delivers lifecycle notifications outside the manager lock.
func (m *Manager) publish(events []event.Message) {
	if m.bus == nil {
		return
	}
	for _, ev := range events {
		if err := m.bus.Publish(ev); err != nil {
			m.logger.Warn("lifecycle notification dropped", "error", err)
		}
	}
}
