// Command modkit runs the module host demo: it loads the native demo
// modules plus any Lua modules found in the plugins directory, then
// renders their panels in a terminal shell.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/kstrand/modkit/internal/config"
	"github.com/kstrand/modkit/internal/event"
	"github.com/kstrand/modkit/internal/host"
	"github.com/kstrand/modkit/internal/module"
	"github.com/kstrand/modkit/internal/module/luamod"
	"github.com/kstrand/modkit/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		pluginsDir string
		logPath    string
	)
	flag.StringVar(&configPath, "config", "modkit.json", "path to the configuration file")
	flag.StringVar(&pluginsDir, "plugins", "plugins", "directory scanned for Lua modules")
	flag.StringVar(&logPath, "log", "", "log file path (default: modkit.log)")
	flag.Parse()

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modkit: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := event.NewBus()
	defer bus.Close()

	cfg, err := config.LoadStore(configPath, config.WithBus(bus), config.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "modkit: load config: %v\n", err)
		return 1
	}

	registry := module.NewRegistry(module.WithRegistryLogger(logger))
	registerNative(registry, logger)
	registerLua(registry, pluginsDir, logger)

	if ok, missing := registry.ValidateDependencies(); !ok {
		logger.Warn("registry has unresolved dependencies", "missing", missing)
	}

	services := service.New()
	if err := services.Register("logger", logger); err != nil {
		logger.Error("register logger service", "error", err)
	}
	if err := services.Register("bus", bus); err != nil {
		logger.Error("register bus service", "error", err)
	}

	manager := module.NewManager(registry,
		module.WithServices(services),
		module.WithManagerBus(bus),
		module.WithConfig(cfg),
		module.WithManagerLogger(logger),
	)

	report, err := manager.ApplyConfig(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "modkit: apply config: %v\n", err)
		return 1
	}
	logger.Info("modules reconciled",
		"loaded", report.Loaded, "unloaded", report.Unloaded, "skipped", report.Skipped)

	shell, err := host.NewShell()
	if err != nil {
		fmt.Fprintf(os.Stderr, "modkit: %v\n", err)
		return 1
	}

	showConfig := false
	draw := func(f *host.Frame) {
		if showConfig {
			f.Println("modkit :: configuration   ('c' back, Esc quit)")
			f.Separator()
			manager.DrawConfigurationAll(f)
			return
		}
		f.Printf("modkit :: %d modules loaded   ('c' settings, Esc quit)", manager.Count())
		f.Separator()
		manager.DrawAll(f)
	}

	onKey := func(ev host.KeyEvent) bool {
		switch ev.Rune {
		case 'q':
			return false
		case 'c':
			showConfig = !showConfig
		case '+', '=':
			adjustCounter(ctx, manager, logger, 1)
		case '-':
			adjustCounter(ctx, manager, logger, -1)
		}
		return true
	}

	if err := shell.Run(ctx, draw, onKey); err != nil {
		logger.Error("shell stopped", "error", err)
	}

	manager.UnloadAll(context.Background())
	return 0
}

// openLogger writes structured logs to a file so log output does not
// fight the terminal shell for the screen.
func openLogger(path string) (*log.Logger, func(), error) {
	if path == "" {
		path = "modkit.log"
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		Level:           log.DebugLevel,
	})
	return logger, func() { f.Close() }, nil
}

func registerNative(registry *module.Registry, logger *log.Logger) {
	descriptors := []module.Descriptor{
		{
			Name:      "counter",
			Version:   "1.0.0",
			DefaultOn: true,
			New:       func() module.Module { return newCounterModule(logger) },
		},
		{
			Name:      "status",
			Version:   "1.0.0",
			Priority:  10,
			DefaultOn: true,
			New:       func() module.Module { return newStatusModule(logger) },
		},
	}
	for _, d := range descriptors {
		if err := registry.Register(d); err != nil {
			logger.Error("register module", "name", d.Name, "error", err)
		}
	}
}

// registerLua scans the plugins directory for subdirectories holding a
// manifest.json and registers each as a module. Bad manifests are
// logged and skipped.
func registerLua(registry *module.Registry, dir string, logger *log.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("read plugins directory", "dir", dir, "error", err)
		}
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(sub, "manifest.json")); err != nil {
			continue
		}
		desc, err := luamod.Descriptor(sub, luamod.WithLogger(logger))
		if err != nil {
			logger.Warn("skip lua module", "dir", sub, "error", err)
			continue
		}
		if err := registry.Register(desc); err != nil {
			logger.Warn("register lua module", "name", desc.Name, "error", err)
		}
	}
}

func adjustCounter(ctx context.Context, manager *module.Manager, logger *log.Logger, delta int) {
	mod, ok := manager.Get("counter")
	if !ok {
		return
	}
	counter, ok := mod.(*counterModule)
	if !ok {
		return
	}
	if err := counter.Adjust(ctx, delta); err != nil {
		logger.Error("adjust counter", "error", err)
	}
}
