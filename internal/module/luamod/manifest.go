package luamod

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ManifestFile is the file name every script module directory carries.
const ManifestFile = "manifest.json"

// DefaultMain is the script entry point used when the manifest does not
// name one.
const DefaultMain = "module.lua"

// Manifest describes a script module's identity and requirements.
type Manifest struct {
	// Name is the unique module identifier (e.g. "status-bar").
	Name string `json:"name"`

	// Version is the module's semantic version (e.g. "1.2.0").
	Version string `json:"version"`

	// Description is a short human-readable summary.
	Description string `json:"description"`

	// Main is the relative path to the entry script (default "module.lua").
	Main string `json:"main"`

	// Dependencies names modules that must load before this one.
	Dependencies []string `json:"dependencies"`

	// Priority orders unrelated modules; lower loads first.
	Priority int `json:"priority"`

	// Enabled is the default-on flag used when the configuration has no
	// entry for this module.
	Enabled bool `json:"enabled"`

	// dir is the module directory the manifest was loaded from.
	dir string
}

// Validation errors.
var (
	ErrMissingName    = errors.New("manifest: name is required")
	ErrInvalidName    = errors.New("manifest: name must be lowercase alphanumeric with hyphens")
	ErrMissingVersion = errors.New("manifest: version is required")
	ErrInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
)

// namePattern validates module names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// semverPattern validates version strings (simplified semver).
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.-]+)?(\+[a-zA-Z0-9.-]+)?$`)

// LoadManifest reads and validates the manifest in a module directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest in %s: %w", dir, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest in %s: %w", dir, err)
	}

	if m.Main == "" {
		m.Main = DefaultMain
	}
	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest's required fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return ErrMissingName
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, m.Name)
	}
	if m.Version == "" {
		return ErrMissingVersion
	}
	if !semverPattern.MatchString(m.Version) {
		return fmt.Errorf("%w: %q", ErrInvalidVersion, m.Version)
	}
	if !strings.HasSuffix(m.Main, ".lua") {
		return fmt.Errorf("%w: %q", ErrInvalidMain, m.Main)
	}
	return nil
}

// MainPath returns the absolute path of the entry script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}

// Dir returns the module directory.
func (m *Manifest) Dir() string { return m.dir }
