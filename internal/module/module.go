package module

import (
	"context"

	"github.com/kstrand/modkit/internal/config"
	"github.com/kstrand/modkit/internal/event"
	"github.com/kstrand/modkit/internal/host"
	"github.com/kstrand/modkit/internal/service"
)

// Module is the contract every loadable module implements.
//
// The manager drives the lifecycle in a fixed sequence: RegisterServices
// into the module's scoped container, then Initialize with the Runtime,
// then DrawUI/DrawConfiguration on every host frame while loaded, then
// Dispose at unload.
type Module interface {
	// Name is the unique module identifier.
	Name() string

	// Version is the module's semantic version.
	Version() string

	// Dependencies lists the names of modules that must be loaded first.
	Dependencies() []string

	// RegisterServices adds module-provided services to the module's
	// scoped container before initialization.
	RegisterServices(scope *service.Container) error

	// Initialize hands the module its runtime context. The module is
	// considered loaded only if Initialize returns nil.
	Initialize(ctx context.Context, rt *Runtime) error

	// DrawUI renders the module's main UI for one frame.
	DrawUI(f *host.Frame)

	// DrawConfiguration renders the module's settings UI for one frame.
	DrawConfiguration(f *host.Frame)

	// Dispose releases the module's resources at unload. The manager
	// calls it exactly once per load, even when the module registered
	// itself as a service in its own scope.
	Dispose() error
}

// Descriptor is the static metadata a module registers under. It is
// inert: the factory creates a fresh instance each time the module is
// loaded.
type Descriptor struct {
	// Name uniquely identifies the module in the registry.
	Name string

	// Version is the module's semantic version.
	Version string

	// Dependencies names modules that must load before this one.
	Dependencies []string

	// Priority orders modules with no dependency relation between them;
	// lower values load first. Dependency constraints strictly override
	// priority.
	Priority int

	// DefaultOn enables the module when the configuration has no entry
	// for it.
	DefaultOn bool

	// New constructs a fresh instance of the module.
	New func() Module
}

// Runtime is the context a module receives at Initialize.
type Runtime struct {
	// Services is the module's scoped container; lookups fall back to
	// the host's global container.
	Services *service.Container

	// Bus is the process-wide event bus.
	Bus *event.Bus

	// Config supplies the module's persisted configuration.
	Config config.Provider

	// Deps holds the live instances of the module's declared
	// dependencies, keyed by name.
	Deps map[string]Module
}

// Dependency returns the loaded instance of a declared dependency.
func (rt *Runtime) Dependency(name string) (Module, bool) {
	m, ok := rt.Deps[name]
	return m, ok
}
