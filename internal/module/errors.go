package module

import "errors"

// Sentinel errors for the registry and manager.
var (
	// ErrNilModule is returned when Load is called with a nil module.
	ErrNilModule = errors.New("module cannot be nil")

	// ErrEmptyName is returned when a descriptor has no name.
	ErrEmptyName = errors.New("module name cannot be empty")

	// ErrNilFactory is returned when a descriptor has no factory.
	ErrNilFactory = errors.New("module factory cannot be nil")

	// ErrNotRegistered is returned when an operation names a module the
	// registry does not know.
	ErrNotRegistered = errors.New("module not registered")

	// ErrMissingDependency is returned by Load when a declared dependency
	// is not in the loaded set.
	ErrMissingDependency = errors.New("missing dependency")
)
