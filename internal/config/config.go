package config

import "errors"

// Sentinel errors for configuration access.
var (
	// ErrEmptyModuleName is returned when a module config is requested or
	// stored without a name.
	ErrEmptyModuleName = errors.New("module name cannot be empty")

	// ErrInvalidDocument is returned when the backing JSON document is
	// malformed.
	ErrInvalidDocument = errors.New("configuration document is not valid JSON")
)

// ModuleConfig holds the configuration for a single module.
type ModuleConfig struct {
	// Name is the unique module identifier.
	Name string

	// Enabled controls whether the module should be loaded.
	Enabled bool

	// Settings contains module-specific settings, opaque to the core.
	Settings map[string]any
}

// Provider supplies module configuration to the module manager.
type Provider interface {
	// ModuleConfig returns the stored configuration for a module. The
	// second return is false when the module has never been configured;
	// the manager then falls back to the descriptor's default.
	ModuleConfig(name string) (ModuleConfig, bool)

	// SetModuleConfig stores a module's configuration in memory. Call
	// Save to persist.
	SetModuleConfig(name string, cfg ModuleConfig) error

	// Save persists the configuration.
	Save() error
}

// Memory is an in-process Provider with no persistence, useful for
// tests and embedded hosts.
type Memory struct {
	modules map[string]ModuleConfig
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{modules: make(map[string]ModuleConfig)}
}

// ModuleConfig implements Provider.
func (m *Memory) ModuleConfig(name string) (ModuleConfig, bool) {
	cfg, ok := m.modules[name]
	return cfg, ok
}

// SetModuleConfig implements Provider.
func (m *Memory) SetModuleConfig(name string, cfg ModuleConfig) error {
	if name == "" {
		return ErrEmptyModuleName
	}
	cfg.Name = name
	m.modules[name] = cfg
	return nil
}

// SetEnabled is a convenience wrapper flipping only the enabled flag.
func (m *Memory) SetEnabled(name string, enabled bool) error {
	cfg, _ := m.ModuleConfig(name)
	cfg.Enabled = enabled
	return m.SetModuleConfig(name, cfg)
}

// Save implements Provider. It is a no-op for the in-memory provider.
func (m *Memory) Save() error { return nil }
