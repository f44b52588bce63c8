package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"runtimed/internal/lifecycle"
	"runtimed/internal/memory"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

type countingAdapter struct {
	mu      sync.Mutex
	loads   int
	runs    int
	unloads int
	loadErr error
	runErr  error
	reply   string
}

func (a *countingAdapter) Load(_ context.Context, m types.Model) (routing.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loadErr != nil {
		return nil, a.loadErr
	}
	a.loads++
	return "handle:" + m.ID, nil
}

func (a *countingAdapter) Run(_ context.Context, _ routing.Handle, _ routing.Request) (routing.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runErr != nil {
		return routing.Result{}, a.runErr
	}
	a.runs++
	return routing.Result{Content: a.reply, CompletionTokens: 3}, nil
}

func (a *countingAdapter) Unload(routing.Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unloads++
	return nil
}

func (a *countingAdapter) counts() (int, int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loads, a.runs, a.unloads
}

func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return p
}

func testModel(t *testing.T, dir string) types.Model {
	t.Helper()
	return types.Model{
		ID:             "tiny.gguf",
		Name:           "tiny.gguf",
		Path:           writeModelFile(t, dir, "tiny.gguf"),
		Framework:      types.FrameworkLlamaCpp,
		EstMemoryBytes: 1024,
	}
}

func newTestManager(t *testing.T, models []types.Model, adapter routing.ExecutionAdapter) (*Manager, *MemoryPublisher) {
	t.Helper()
	adapters := routing.NewAdapterRegistry()
	if adapter != nil {
		adapters.Register(types.FrameworkLlamaCpp, adapter)
	}
	pub := NewMemoryPublisher()
	m, err := NewWithConfig(ManagerConfig{
		Models:    models,
		Adapters:  adapters,
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("construct manager: %v", err)
	}
	return m, pub
}

func TestEnsureReadyDrivesToReady(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{reply: "ok"}
	m, pub := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)

	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	svc, err := m.Lifecycle("tiny.gguf")
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	if got := svc.CurrentState(); got != lifecycle.StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
	loads, _, _ := adapter.counts()
	if loads != 1 {
		t.Fatalf("adapter loads = %d, want 1", loads)
	}
	if active := m.tracker.Active(); len(active) != 1 {
		t.Fatalf("active allocations = %d, want 1", len(active))
	}
	if !m.Ready() {
		t.Fatalf("manager not ready after ensure")
	}
	if got := pub.Named(EventTransition); len(got) == 0 {
		t.Fatalf("no transition events published")
	}
}

func TestEnsureReadyIdempotent(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{}
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)

	for i := 0; i < 3; i++ {
		if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
			t.Fatalf("ensure %d: %v", i, err)
		}
	}
	loads, _, _ := adapter.counts()
	if loads != 1 {
		t.Fatalf("adapter loads = %d, want 1", loads)
	}
}

func TestEnsureReadyUnknownModel(t *testing.T) {
	m, _ := newTestManager(t, nil, nil)
	err := m.EnsureReady(context.Background(), "nope")
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestEnsureReadyWithoutAdapterForcesErrorState(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)
	model.Framework = types.FrameworkONNX
	model.ID = "x.onnx"
	model.Path = writeModelFile(t, dir, "x.onnx")
	m, _ := newTestManager(t, []types.Model{model}, nil)

	err := m.EnsureReady(context.Background(), "x.onnx")
	if err == nil {
		t.Fatalf("expected error when no adapter registered")
	}
	if !IsAdapterUnavailable(err) {
		t.Fatalf("expected adapter-unavailable, got %v", err)
	}
	svc, _ := m.Lifecycle("x.onnx")
	if got := svc.CurrentState(); got != lifecycle.StateError {
		t.Fatalf("state = %s, want error", got)
	}
}

func TestEnsureReadyMissingArtifactForcesErrorState(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)
	model.Path = filepath.Join(dir, "gone.gguf") // never written
	m, _ := newTestManager(t, []types.Model{model}, &countingAdapter{})

	err := m.EnsureReady(context.Background(), "tiny.gguf")
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	svc, _ := m.Lifecycle("tiny.gguf")
	if got := svc.CurrentState(); got != lifecycle.StateError {
		t.Fatalf("state = %s, want error", got)
	}
}

func TestEnsureReadyRecoversFromErrorState(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{}
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)

	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	svc, _ := m.Lifecycle("tiny.gguf")
	if err := svc.HandleError(errors.New("induced")); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if got := svc.CurrentState(); got != lifecycle.StateReady {
		t.Fatalf("state = %s, want ready", got)
	}
	loads, _, unloads := adapter.counts()
	if loads != 2 || unloads != 1 {
		t.Fatalf("loads = %d unloads = %d, want 2/1", loads, unloads)
	}
}

func TestExecuteOnDevice(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{reply: "hello back"}
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)

	res, err := m.Execute(context.Background(), routing.Request{Model: "tiny.gguf", Prompt: "hello"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Delegated {
		t.Fatalf("on-device execution marked delegated")
	}
	if res.Decision.Target != routing.TargetOnDevice {
		t.Fatalf("target = %s, want on_device", res.Decision.Target)
	}
	if res.Result.Content != "hello back" {
		t.Fatalf("content = %q", res.Result.Content)
	}
	svc, _ := m.Lifecycle("tiny.gguf")
	if got := svc.CurrentState(); got != lifecycle.StateReady {
		t.Fatalf("state after execute = %s, want ready", got)
	}
}

func TestExecuteDelegatesCloudWhenNoCandidate(t *testing.T) {
	m, _ := newTestManager(t, nil, nil)
	m.SetPolicy(routing.Policy{CloudProvider: "openai"})

	res, err := m.Execute(context.Background(), routing.Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !res.Delegated {
		t.Fatalf("cloud decision not marked delegated")
	}
	if res.Decision.Target != routing.TargetCloud {
		t.Fatalf("target = %s, want cloud", res.Decision.Target)
	}
}

func TestExecuteFailsWithoutCandidateOrProvider(t *testing.T) {
	m, _ := newTestManager(t, nil, nil)
	_, err := m.Execute(context.Background(), routing.Request{Prompt: "hi"})
	if !routing.IsRoutingFailure(err) {
		t.Fatalf("expected routing failure, got %v", err)
	}
}

func TestExecuteAdapterErrorLeavesMachineRecoverable(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{runErr: errors.New("inference blew up")}
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)

	_, err := m.Execute(context.Background(), routing.Request{Model: "tiny.gguf", Prompt: "hi"})
	if err == nil {
		t.Fatalf("expected run error")
	}
	svc, _ := m.Lifecycle("tiny.gguf")
	if got := svc.CurrentState(); got != lifecycle.StateError {
		t.Fatalf("state = %s, want error", got)
	}

	adapter.mu.Lock()
	adapter.runErr = nil
	adapter.mu.Unlock()
	if _, err := m.Execute(context.Background(), routing.Request{Model: "tiny.gguf", Prompt: "hi"}); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}

func TestCriticalCrossingForcesLoadedMachinesToError(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{}
	adapters := routing.NewAdapterRegistry()
	adapters.Register(types.FrameworkLlamaCpp, adapter)
	pub := NewMemoryPublisher()
	m, err := NewWithConfig(ManagerConfig{
		Models:   []types.Model{testModel(t, dir)},
		Adapters: adapters,
		Watcher: memory.NewThresholdWatcher(memory.WatcherConfig{
			WarningBytes:  512 * 1024 * 1024,
			CriticalBytes: 128 * 1024 * 1024,
		}),
		Publisher: pub,
	})
	if err != nil {
		t.Fatalf("construct manager: %v", err)
	}
	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	m.watcher.Observe(memory.Sample{
		Timestamp:      time.Now(),
		AvailableBytes: 64 * 1024 * 1024,
		TotalBytes:     16 * 1024 * 1024 * 1024,
	})

	svc, _ := m.Lifecycle("tiny.gguf")
	if got := svc.CurrentState(); got != lifecycle.StateError {
		t.Fatalf("state = %s, want error after critical crossing", got)
	}
	if got := pub.Named(EventMemoryCrossing); len(got) == 0 {
		t.Fatalf("no memory crossing events published")
	}
}

func TestStatusAggregates(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, &countingAdapter{})

	st := m.Status()
	if st.State != "starting" {
		t.Fatalf("state = %q, want starting before ensure", st.State)
	}
	if len(st.Lifecycles) != 1 || st.Lifecycles[0].ModelID != "tiny.gguf" {
		t.Fatalf("unexpected lifecycles: %+v", st.Lifecycles)
	}
	if st.Lifecycles[0].State != string(lifecycle.StateUninitialized) {
		t.Fatalf("initial state = %q", st.Lifecycles[0].State)
	}

	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	st = m.Status()
	if st.State != "ready" {
		t.Fatalf("state = %q, want ready", st.State)
	}
	if st.Memory.TotalBytes == 0 {
		t.Fatalf("memory snapshot missing totals")
	}
}

func TestMemoryReportAssembles(t *testing.T) {
	dir := t.TempDir()
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, &countingAdapter{})
	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	rep := m.MemoryReport()
	if rep.Stats.TotalBytes == 0 {
		t.Fatalf("report missing current sample")
	}
	if len(rep.Allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(rep.Allocations))
	}
	if rep.Fragmentation.Severity == "" {
		t.Fatalf("fragmentation severity missing")
	}
}

func TestMemoryReportUsesConfiguredLeakTunables(t *testing.T) {
	dir := t.TempDir()
	adapters := routing.NewAdapterRegistry()
	adapters.Register(types.FrameworkLlamaCpp, &countingAdapter{})
	m, err := NewWithConfig(ManagerConfig{
		Models:   []types.Model{testModel(t, dir)},
		Adapters: adapters,
		// One-byte backstop: any live allocation counts as a leak.
		Leaks: memory.LeakDetectorConfig{AbsoluteSizeBytes: 1},
	})
	if err != nil {
		t.Fatalf("construct manager: %v", err)
	}
	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	rep := m.MemoryReport()
	if len(rep.Leaks) != 1 {
		t.Fatalf("leaks = %d, want the loaded model flagged", len(rep.Leaks))
	}
	if rep.Leaks[0].Name != "model:tiny.gguf" {
		t.Fatalf("leak name = %q", rep.Leaks[0].Name)
	}
}

func TestCloseReleasesAdapterHandles(t *testing.T) {
	dir := t.TempDir()
	adapter := &countingAdapter{}
	m, _ := newTestManager(t, []types.Model{testModel(t, dir)}, adapter)
	if err := m.EnsureReady(context.Background(), "tiny.gguf"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	m.Close()
	svc, _ := m.Lifecycle("tiny.gguf")
	if got := svc.CurrentState(); got != lifecycle.StateUninitialized {
		t.Fatalf("state after close = %s, want uninitialized", got)
	}
	_, _, unloads := adapter.counts()
	if unloads != 1 {
		t.Fatalf("unloads = %d, want 1", unloads)
	}
	if active := m.tracker.Active(); len(active) != 0 {
		t.Fatalf("active allocations after close = %d, want 0", len(active))
	}
}

func TestDuplicateModelIDsRejected(t *testing.T) {
	dir := t.TempDir()
	model := testModel(t, dir)
	_, err := NewWithConfig(ManagerConfig{Models: []types.Model{model, model}})
	if err == nil {
		t.Fatalf("expected duplicate id rejection")
	}
}
