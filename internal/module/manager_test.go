package module

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kstrand/modkit/internal/config"
	"github.com/kstrand/modkit/internal/event"
	"github.com/kstrand/modkit/internal/host"
)

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *Registry) {
	t.Helper()
	r := NewRegistry(WithRegistryLogger(testLogger()))
	opts = append([]ManagerOption{WithManagerLogger(testLogger())}, opts...)
	return NewManager(r, opts...), r
}

func TestManager_LoadAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mod := &fakeModule{name: "status", version: "1.0.0"}
	if err := m.Load(ctx, mod); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !mod.initialized {
		t.Error("module was not initialized")
	}
	if !m.IsLoaded("status") {
		t.Error("module not reported as loaded")
	}
	got, ok := m.Get("status")
	if !ok || got != Module(mod) {
		t.Errorf("Get() = (%v, %v), want the loaded instance", got, ok)
	}

	// The scoped container must hold what RegisterServices added.
	if !mod.runtime.Services.Has("status.service") {
		t.Error("scoped container is missing the module's service")
	}
}

func TestManager_LoadNil(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Load(context.Background(), nil); !errors.Is(err, ErrNilModule) {
		t.Errorf("expected ErrNilModule, got %v", err)
	}
}

func TestManager_DuplicateLoadIsNoOp(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	first := &fakeModule{name: "status"}
	second := &fakeModule{name: "status"}

	if err := m.Load(ctx, first); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Load(ctx, second); err != nil {
		t.Fatalf("duplicate Load() should be a no-op, got %v", err)
	}

	if second.initialized {
		t.Error("duplicate load initialized the second instance")
	}
	if m.Count() != 1 {
		t.Errorf("expected 1 loaded module, got %d", m.Count())
	}
}

func TestManager_LoadMissingDependency(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mod := &fakeModule{name: "child", deps: []string{"base"}}
	err := m.Load(ctx, mod)
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), "base") {
		t.Errorf("error should name the missing dependency: %v", err)
	}
	if m.Count() != 0 {
		t.Error("failed load left the module in the loaded set")
	}
	if mod.initialized {
		t.Error("module was initialized despite the missing dependency")
	}
}

func TestManager_LoadInjectsDependencies(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	base := &fakeModule{name: "base"}
	child := &fakeModule{name: "child", deps: []string{"base"}}

	if err := m.Load(ctx, base); err != nil {
		t.Fatalf("Load(base) failed: %v", err)
	}
	if err := m.Load(ctx, child); err != nil {
		t.Fatalf("Load(child) failed: %v", err)
	}

	dep, ok := child.runtime.Dependency("base")
	if !ok || dep != Module(base) {
		t.Errorf("runtime dependency: expected the base instance, got (%v, %v)", dep, ok)
	}
}

func TestManager_LoadInitializeFailure(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	wantErr := errors.New("boom")
	mod := &fakeModule{name: "broken", initErr: wantErr}

	if err := m.Load(ctx, mod); !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped init error, got %v", err)
	}
	if m.IsLoaded("broken") {
		t.Error("failed load left the module loaded")
	}
}

func TestManager_DisposeOncePerSelfRegisteredModule(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	// The fixture registers itself as a service in its scope, so scope
	// teardown must not dispose it a second time.
	var trace []string
	mod := &fakeModule{name: "solo", trace: &trace}
	if err := m.Load(ctx, mod); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Unload(ctx, "solo"); err != nil {
		t.Fatalf("Unload() failed: %v", err)
	}

	disposals := 0
	for _, entry := range trace {
		if entry == "dispose:solo" {
			disposals++
		}
	}
	if disposals != 1 {
		t.Errorf("expected exactly 1 disposal, got %d (trace %v)", disposals, trace)
	}
}

func TestManager_FailedInitializeDoesNotDispose(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var trace []string
	mod := &fakeModule{name: "broken", initErr: errors.New("boom"), trace: &trace}
	if err := m.Load(ctx, mod); err == nil {
		t.Fatal("Load() succeeded for a module whose Initialize fails")
	}

	if mod.disposed {
		t.Error("Dispose was called for a module that never initialized")
	}
	if m.IsLoaded("broken") {
		t.Error("failed module ended up in the loaded set")
	}
}

func TestManager_CascadingUnload(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var trace []string
	a := &fakeModule{name: "a", trace: &trace}
	b := &fakeModule{name: "b", deps: []string{"a"}, trace: &trace}
	c := &fakeModule{name: "c", deps: []string{"b"}, trace: &trace}

	for _, mod := range []*fakeModule{a, b, c} {
		if err := m.Load(ctx, mod); err != nil {
			t.Fatalf("Load(%s) failed: %v", mod.name, err)
		}
	}

	if err := m.Unload(ctx, "a"); err != nil {
		t.Fatalf("Unload() failed: %v", err)
	}

	if m.Count() != 0 {
		t.Errorf("expected empty loaded set, got %v", m.LoadedNames())
	}

	// Dependents must be disposed first: c, then b, then a.
	disposals := make([]string, 0, 3)
	for _, entry := range trace {
		if strings.HasPrefix(entry, "dispose:") {
			disposals = append(disposals, strings.TrimPrefix(entry, "dispose:"))
		}
	}
	want := []string{"c", "b", "a"}
	if len(disposals) != 3 {
		t.Fatalf("expected 3 disposals, got %v", disposals)
	}
	for i := range want {
		if disposals[i] != want[i] {
			t.Errorf("disposal %d: expected %s, got %s (full: %v)", i, want[i], disposals[i], disposals)
		}
	}
}

func TestManager_UnloadNotLoadedIsNoOp(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Unload(context.Background(), "ghost"); err != nil {
		t.Errorf("Unload() of unknown module should be a no-op, got %v", err)
	}
}

func TestManager_LifecycleMessages(t *testing.T) {
	bus := event.NewBus()
	m, _ := newTestManager(t, WithManagerBus(bus))
	ctx := context.Background()

	var loaded, unloaded []string
	bus.Subscribe(TopicLoaded, func(msg event.Message) {
		loaded = append(loaded, msg.(LoadedMessage).Name)
	})
	bus.Subscribe(TopicUnloaded, func(msg event.Message) {
		unloaded = append(unloaded, msg.(UnloadedMessage).Name)
	})

	if err := m.Load(ctx, &fakeModule{name: "status", version: "1.2.3"}); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Unload(ctx, "status"); err != nil {
		t.Fatalf("Unload() failed: %v", err)
	}

	if len(loaded) != 1 || loaded[0] != "status" {
		t.Errorf("expected loaded notification [status], got %v", loaded)
	}
	if len(unloaded) != 1 || unloaded[0] != "status" {
		t.Errorf("expected unloaded notification [status], got %v", unloaded)
	}
}

func TestManager_ApplyConfigLoadsInDependencyOrder(t *testing.T) {
	m, r := newTestManager(t)
	ctx := context.Background()

	var trace []string
	r.Register(descriptorFor(&fakeModule{name: "base", trace: &trace}, 0, false))
	r.Register(descriptorFor(&fakeModule{name: "dependent", deps: []string{"base"}, trace: &trace}, 10, false))

	cfg := config.NewMemory()
	cfg.SetEnabled("base", true)
	cfg.SetEnabled("dependent", true)

	report, err := m.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}

	if len(report.Loaded) != 2 || report.Loaded[0] != "base" || report.Loaded[1] != "dependent" {
		t.Errorf("expected loaded [base dependent], got %v", report.Loaded)
	}
	if m.Count() != 2 {
		t.Errorf("expected 2 loaded modules, got %d", m.Count())
	}
	if len(trace) != 2 || trace[0] != "init:base" || trace[1] != "init:dependent" {
		t.Errorf("expected init order [base dependent], got %v", trace)
	}
}

func TestManager_ApplyConfigSkipsUnsatisfiedDependency(t *testing.T) {
	m, r := newTestManager(t)
	ctx := context.Background()

	r.Register(descriptorFor(&fakeModule{name: "base"}, 0, false))
	r.Register(descriptorFor(&fakeModule{name: "dependent", deps: []string{"base"}}, 10, false))
	r.Register(descriptorFor(&fakeModule{name: "independent"}, 5, false))

	cfg := config.NewMemory()
	cfg.SetEnabled("base", false)
	cfg.SetEnabled("dependent", true)
	cfg.SetEnabled("independent", true)

	report, err := m.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}

	if m.IsLoaded("dependent") {
		t.Error("dependent loaded despite its dependency being disabled")
	}
	if !m.IsLoaded("independent") {
		t.Error("independent module did not load")
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "dependent" {
		t.Errorf("expected skipped [dependent], got %v", report.Skipped)
	}
}

func TestManager_ApplyConfigIdempotent(t *testing.T) {
	m, r := newTestManager(t)
	ctx := context.Background()

	r.Register(descriptorFor(&fakeModule{name: "base"}, 0, false))
	r.Register(descriptorFor(&fakeModule{name: "dependent", deps: []string{"base"}}, 10, false))

	cfg := config.NewMemory()
	cfg.SetEnabled("base", true)
	cfg.SetEnabled("dependent", true)

	if _, err := m.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("first ApplyConfig() failed: %v", err)
	}

	report, err := m.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("second ApplyConfig() failed: %v", err)
	}
	if len(report.Loaded)+len(report.Unloaded)+len(report.Skipped) != 0 {
		t.Errorf("expected no actions on unchanged config, got %+v", report)
	}
}

func TestManager_ApplyConfigDisableCascades(t *testing.T) {
	m, r := newTestManager(t)
	ctx := context.Background()

	r.Register(descriptorFor(&fakeModule{name: "base"}, 0, false))
	r.Register(descriptorFor(&fakeModule{name: "dependent", deps: []string{"base"}}, 10, false))

	cfg := config.NewMemory()
	cfg.SetEnabled("base", true)
	cfg.SetEnabled("dependent", true)
	if _, err := m.ApplyConfig(ctx, cfg); err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}

	cfg.SetEnabled("base", false)
	report, err := m.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}

	// The cascade takes dependent down with base. Dependent stays down
	// this pass; the next reconciliation reports it skipped.
	if m.Count() != 0 {
		t.Errorf("expected empty loaded set, got %v", m.LoadedNames())
	}
	if len(report.Unloaded) != 2 {
		t.Errorf("expected 2 unloads (dependent first), got %v", report.Unloaded)
	}
	if len(report.Unloaded) == 2 && (report.Unloaded[0] != "dependent" || report.Unloaded[1] != "base") {
		t.Errorf("expected unload order [dependent base], got %v", report.Unloaded)
	}

	next, err := m.ApplyConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}
	if len(next.Skipped) != 1 || next.Skipped[0] != "dependent" {
		t.Errorf("expected dependent skipped on next pass, got %+v", next)
	}
}

func TestManager_ApplyConfigUsesDescriptorDefault(t *testing.T) {
	m, r := newTestManager(t)
	ctx := context.Background()

	r.Register(descriptorFor(&fakeModule{name: "on-by-default"}, 0, true))
	r.Register(descriptorFor(&fakeModule{name: "off-by-default"}, 0, false))

	report, err := m.ApplyConfig(ctx, config.NewMemory())
	if err != nil {
		t.Fatalf("ApplyConfig() failed: %v", err)
	}

	if !m.IsLoaded("on-by-default") {
		t.Error("default-on module did not load")
	}
	if m.IsLoaded("off-by-default") {
		t.Error("default-off module loaded without configuration")
	}
	if len(report.Loaded) != 1 {
		t.Errorf("expected 1 load, got %v", report.Loaded)
	}
}

func TestManager_DependentQueries(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	a := &fakeModule{name: "a"}
	b := &fakeModule{name: "b", deps: []string{"a"}}
	c := &fakeModule{name: "c", deps: []string{"b"}}
	for _, mod := range []*fakeModule{a, b, c} {
		if err := m.Load(ctx, mod); err != nil {
			t.Fatalf("Load(%s) failed: %v", mod.name, err)
		}
	}

	direct := m.Dependents("a")
	if len(direct) != 1 || direct[0] != "b" {
		t.Errorf("Dependents(a): expected [b], got %v", direct)
	}

	all := m.AllDependents("a")
	if len(all) != 2 || all[0] != "b" || all[1] != "c" {
		t.Errorf("AllDependents(a): expected [b c], got %v", all)
	}

	if ok, blockers := m.CanDisable("a"); ok || len(blockers) != 2 {
		t.Errorf("CanDisable(a): expected (false, 2 blockers), got (%v, %v)", ok, blockers)
	}
	if ok, blockers := m.CanDisable("c"); !ok || len(blockers) != 0 {
		t.Errorf("CanDisable(c): expected (true, none), got (%v, %v)", ok, blockers)
	}

	// Queries must not mutate anything.
	if m.Count() != 3 {
		t.Errorf("queries changed the loaded set: %v", m.LoadedNames())
	}
}

func TestManager_UnloadAllReverseOrder(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	var trace []string
	first := &fakeModule{name: "first", trace: &trace}
	second := &fakeModule{name: "second", trace: &trace}
	if err := m.Load(ctx, first); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Load(ctx, second); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	m.UnloadAll(ctx)

	if m.Count() != 0 {
		t.Errorf("expected empty loaded set, got %v", m.LoadedNames())
	}
	want := []string{"init:first", "init:second", "dispose:second", "dispose:first"}
	if len(trace) != len(want) {
		t.Fatalf("expected trace %v, got %v", want, trace)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("trace[%d]: expected %s, got %s", i, want[i], trace[i])
		}
	}
}

func TestManager_DrawAllIsolatesPanics(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.Load(ctx, &fakeModule{name: "broken", drawPanics: true}); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if err := m.Load(ctx, &fakeModule{name: "healthy"}); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	f := host.NewFrame()
	m.DrawAll(f)

	lines := f.Lines()
	foundHealthy, foundErrorLine := false, false
	for _, line := range lines {
		if line == "healthy" {
			foundHealthy = true
		}
		if strings.Contains(line, "broken") && strings.Contains(line, "draw failed") {
			foundErrorLine = true
		}
	}
	if !foundHealthy {
		t.Errorf("healthy module did not draw: %v", lines)
	}
	if !foundErrorLine {
		t.Errorf("broken module's failure was not surfaced inline: %v", lines)
	}
}
