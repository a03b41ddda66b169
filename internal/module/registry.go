package module

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
)

// Registry is the catalog of known module descriptors. Registered
// modules are not necessarily loaded; the Manager decides that.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
	logger      *log.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger for registry warnings.
func WithRegistryLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		descriptors: make(map[string]Descriptor),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register upserts a descriptor. Registering a name that already exists
// overwrites the previous descriptor and logs a warning; last write
// wins.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return ErrEmptyName
	}
	if d.New == nil {
		return ErrNilFactory
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Name]; exists {
		r.logger.Warn("module descriptor overwritten", "module", d.Name, "version", d.Version)
	}
	r.descriptors[d.Name] = d
	return nil
}

// Descriptor returns the registered descriptor for a name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// Names returns all registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered descriptors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.descriptors)
}

// ValidateDependencies checks that every declared dependency of every
// registered module is itself registered. It returns the offending
// "module -> dependency" pairs; it does not look for cycles.
func (r *Registry) ValidateDependencies() (bool, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []string
	for name, d := range r.descriptors {
		for _, dep := range d.Dependencies {
			if _, ok := r.descriptors[dep]; !ok {
				missing = append(missing, name+" -> "+dep)
			}
		}
	}
	sort.Strings(missing)
	return len(missing) == 0, missing
}

// LoadOrder returns the descriptors in a safe instantiation order: a
// module never precedes its declared dependencies, and among modules
// with no ordering constraint lower priority sorts earlier, ties broken
// by name. Dependency constraints strictly override priority.
//
// A module participating in a dependency cycle is still emitted exactly
// once, with a logged warning, at the point it first becomes reachable;
// the traversal never loops.
func (r *Registry) LoadOrder() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seeds := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		seeds = append(seeds, d)
	}
	sort.Slice(seeds, func(i, j int) bool {
		if seeds[i].Priority != seeds[j].Priority {
			return seeds[i].Priority < seeds[j].Priority
		}
		return seeds[i].Name < seeds[j].Name
	})

	order := make([]Descriptor, 0, len(seeds))
	visited := make(map[string]bool, len(seeds))
	visiting := make(map[string]bool)

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		if visiting[name] {
			r.logger.Warn("dependency cycle detected", "module", name)
			return
		}

		d, ok := r.descriptors[name]
		if !ok {
			// Unregistered dependency; ValidateDependencies reports it.
			return
		}

		visiting[name] = true
		for _, dep := range d.Dependencies {
			visit(dep)
		}
		delete(visiting, name)

		visited[name] = true
		order = append(order, d)
	}

	for _, d := range seeds {
		visit(d.Name)
	}
	return order
}

// NewInstance constructs a fresh instance of a registered module.
// Unknown names and factory failures yield nil with a logged warning
// rather than an error: instantiation is best-effort during batch
// loading, and one bad module must not abort the others.
func (r *Registry) NewInstance(name string) Module {
	r.mu.RLock()
	d, ok := r.descriptors[name]
	r.mu.RUnlock()

	if !ok {
		r.logger.Warn("instance requested for unregistered module", "module", name)
		return nil
	}

	instance, err := safeConstruct(d)
	if err != nil {
		r.logger.Warn("module construction failed", "module", name, "error", err)
		return nil
	}
	if instance == nil {
		r.logger.Warn("module factory returned nil", "module", name)
	}
	return instance
}

// safeConstruct runs the factory with panic recovery.
func safeConstruct(d Descriptor) (m Module, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			m = nil
			err = &constructPanic{module: d.Name, value: rec}
		}
	}()
	return d.New(), nil
}

type constructPanic struct {
	module string
	value  any
}

func (e *constructPanic) Error() string {
	return "factory panicked for module " + e.module
}
