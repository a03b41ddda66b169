package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/kstrand/modkit/internal/event"
)

// Store is a JSON-file-backed Provider. The document is held in memory
// as raw JSON and queried with gjson; writes go through sjson so
// settings payloads survive round-trips byte for byte.
//
// Document layout:
//
//	{
//	  "modules": {
//	    "<name>": { "enabled": true, "settings": { ... } }
//	  }
//	}
type Store struct {
	mu     sync.RWMutex
	path   string
	raw    []byte
	dirty  map[string]struct{}
	bus    *event.Bus
	logger *log.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithBus sets the bus Save publishes ChangedMessage on.
func WithBus(bus *event.Bus) StoreOption {
	return func(s *Store) {
		s.bus = bus
	}
}

// WithLogger sets the logger for store warnings.
func WithLogger(l *log.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// LoadStore reads the configuration file at path. A missing file yields
// an empty configuration; a malformed one is an error.
func LoadStore(path string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		path:   path,
		raw:    []byte("{}"),
		dirty:  make(map[string]struct{}),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// First run: start from an empty document.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("%s: %w", path, ErrInvalidDocument)
		}
		s.raw = data
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// ModuleConfig implements Provider.
func (s *Store) ModuleConfig(name string) (ModuleConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := gjson.GetBytes(s.raw, modulePath(name))
	if !res.Exists() {
		return ModuleConfig{}, false
	}

	cfg := ModuleConfig{
		Name:    name,
		Enabled: res.Get("enabled").Bool(),
	}
	if settings := res.Get("settings"); settings.IsObject() {
		if m, ok := settings.Value().(map[string]any); ok {
			cfg.Settings = m
		}
	}
	return cfg, true
}

// SetModuleConfig implements Provider. The change is held in memory
// until Save.
func (s *Store) SetModuleConfig(name string, cfg ModuleConfig) error {
	if name == "" {
		return ErrEmptyModuleName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := sjson.SetBytes(s.raw, modulePath(name)+".enabled", cfg.Enabled)
	if err != nil {
		return fmt.Errorf("set config for module %q: %w", name, err)
	}
	if cfg.Settings != nil {
		raw, err = sjson.SetBytes(raw, modulePath(name)+".settings", cfg.Settings)
		if err != nil {
			return fmt.Errorf("set settings for module %q: %w", name, err)
		}
	}

	s.raw = raw
	s.dirty[name] = struct{}{}
	return nil
}

// SetEnabled flips only the enabled flag for a module.
func (s *Store) SetEnabled(name string, enabled bool) error {
	cfg, _ := s.ModuleConfig(name)
	cfg.Enabled = enabled
	return s.SetModuleConfig(name, cfg)
}

// Save writes the document to disk and publishes a ChangedMessage
// listing the modules touched since the previous save. Publish failures
// are logged, not returned: persistence succeeded.
func (s *Store) Save() error {
	s.mu.Lock()
	raw := make([]byte, len(s.raw))
	copy(raw, s.raw)

	changed := make([]string, 0, len(s.dirty))
	for name := range s.dirty {
		changed = append(changed, name)
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	sort.Strings(changed)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}

	if s.bus != nil {
		msg := ChangedMessage{Path: s.path, Modules: changed}
		if err := s.bus.Publish(msg); err != nil {
			s.logger.Warn("config change notification dropped", "path", s.path, "error", err)
		}
	}
	return nil
}

// modulePath builds the gjson/sjson path for a module entry, escaping
// path metacharacters in the name.
func modulePath(name string) string {
	return "modules." + escapeKey(name)
}

func escapeKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
