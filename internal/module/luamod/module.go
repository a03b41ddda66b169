package luamod

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/kstrand/modkit/internal/host"
	"github.com/kstrand/modkit/internal/module"
	"github.com/kstrand/modkit/internal/service"
)

// Script hook names looked up as Lua globals. All are optional.
const (
	hookInitialize = "initialize"
	hookDrawUI     = "draw_ui"
	hookDrawConfig = "draw_config"
	hookDispose    = "dispose"
)

// Module is a module.Module backed by a Lua script.
type Module struct {
	manifest *Manifest
	logger   *log.Logger
	L        *lua.LState
}

// Option configures a script module.
type Option func(*Module)

// WithLogger sets the logger used for script errors.
func WithLogger(l *log.Logger) Option {
	return func(m *Module) {
		m.logger = l
	}
}

// New loads the manifest in dir and prepares a module instance. The Lua
// state is created at Initialize, not here, so a registry full of
// script descriptors stays cheap.
func New(dir string, opts ...Option) (*Module, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	m := &Module{
		manifest: manifest,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Descriptor loads the manifest in dir and returns a registry
// descriptor whose factory builds a fresh script instance per load.
func Descriptor(dir string, opts ...Option) (module.Descriptor, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return module.Descriptor{}, err
	}

	return module.Descriptor{
		Name:         manifest.Name,
		Version:      manifest.Version,
		Dependencies: manifest.Dependencies,
		Priority:     manifest.Priority,
		DefaultOn:    manifest.Enabled,
		New: func() module.Module {
			m, err := New(dir, opts...)
			if err != nil {
				return nil
			}
			return m
		},
	}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return m.manifest.Name }

// Version implements module.Module.
func (m *Module) Version() string { return m.manifest.Version }

// Dependencies implements module.Module.
func (m *Module) Dependencies() []string { return m.manifest.Dependencies }

// RegisterServices implements module.Module. Script modules provide no
// Go services.
func (m *Module) RegisterServices(scope *service.Container) error { return nil }

// Initialize runs the entry script and its initialize hook.
func (m *Module) Initialize(ctx context.Context, rt *module.Runtime) error {
	L := lua.NewState()
	L.SetContext(ctx)
	m.installAPI(L)

	if err := L.DoFile(m.manifest.MainPath()); err != nil {
		L.Close()
		return fmt.Errorf("script module %q: run %s: %w", m.Name(), m.manifest.Main, err)
	}
	if err := m.callHook(L, hookInitialize); err != nil {
		L.Close()
		return fmt.Errorf("script module %q: initialize: %w", m.Name(), err)
	}

	m.L = L
	return nil
}

// DrawUI implements module.Module.
func (m *Module) DrawUI(f *host.Frame) {
	m.callDraw(hookDrawUI, f)
}

// DrawConfiguration implements module.Module.
func (m *Module) DrawConfiguration(f *host.Frame) {
	m.callDraw(hookDrawConfig, f)
}

// Dispose runs the dispose hook and closes the Lua state.
func (m *Module) Dispose() error {
	if m.L == nil {
		return nil
	}

	err := m.callHook(m.L, hookDispose)
	m.L.Close()
	m.L = nil

	if err != nil {
		return fmt.Errorf("script module %q: dispose: %w", m.Name(), err)
	}
	return nil
}

// installAPI exposes the host bridge as the global "modkit" table.
func (m *Module) installAPI(L *lua.LState) {
	api := L.NewTable()
	L.SetField(api, "module_name", lua.LString(m.manifest.Name))
	L.SetField(api, "log_info", L.NewFunction(func(L *lua.LState) int {
		m.logger.Info(L.CheckString(1), "module", m.Name())
		return 0
	}))
	L.SetField(api, "log_warn", L.NewFunction(func(L *lua.LState) int {
		m.logger.Warn(L.CheckString(1), "module", m.Name())
		return 0
	}))
	L.SetGlobal("modkit", api)
}

// callHook invokes an optional global function with no arguments.
func (m *Module) callHook(L *lua.LState, name string) error {
	fn := L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	return L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true})
}

// callDraw invokes a draw hook, passing a println function bound to the
// frame. Script errors are rendered inline rather than propagated so
// one broken script cannot take the frame down.
func (m *Module) callDraw(name string, f *host.Frame) {
	if m.L == nil {
		return
	}

	fn := m.L.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return
	}

	println := m.L.NewFunction(func(L *lua.LState) int {
		f.Println(L.CheckString(1))
		return 0
	})

	if err := m.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, println); err != nil {
		m.logger.Error("script draw failed", "module", m.Name(), "hook", name, "error", err)
		f.Printf("[%s] script error: %v", m.Name(), err)
	}
}
