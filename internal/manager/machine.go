package manager

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"runtimed/internal/lifecycle"
	"runtimed/internal/memory"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// machine is one managed model: its lifecycle state machine plus the
// adapter handle and allocation record that follow it through load and
// cleanup. State hooks keep the handle in lockstep with the machine: a
// model is only ever "loaded" when its adapter holds a live handle.
type machine struct {
	model    types.Model
	svc      *lifecycle.Service
	adapters *routing.AdapterRegistry
	tracker  *memory.AllocationTracker

	mu      sync.Mutex
	ctx     context.Context // in effect while EnsureReady drives; nil otherwise
	handle  routing.Handle
	adapter routing.ExecutionAdapter
	allocID string
}

func newMachine(model types.Model, adapters *routing.AdapterRegistry, tracker *memory.AllocationTracker, logger zerolog.Logger) (*machine, error) {
	log := logger.With().Str("model", model.ID).Logger()
	svc, err := lifecycle.NewService(lifecycle.Config{Logger: &log})
	if err != nil {
		return nil, err
	}
	m := &machine{
		model:    model,
		svc:      svc,
		adapters: adapters,
		tracker:  tracker,
	}
	svc.AddStateHook(lifecycle.StateValidated, m.validateArtifact)
	svc.AddStateHook(lifecycle.StateLoaded, m.loadAdapter)
	svc.AddStateHook(lifecycle.StateCleanup, m.unloadAdapter)
	return m, nil
}

// loadContext returns the drive context, or Background outside a drive.
func (m *machine) loadContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx != nil {
		return m.ctx
	}
	return context.Background()
}

func (m *machine) setDriveContext(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// validateArtifact checks the model artifact structurally before the
// machine may report it as validated. CoreML artifacts are directories;
// everything else must be a non-empty file.
func (m *machine) validateArtifact(_, _ lifecycle.State) error {
	info, err := os.Stat(m.model.Path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	wantDir := m.model.Framework == types.FrameworkCoreML
	if info.IsDir() != wantDir {
		return fmt.Errorf("artifact %s: wrong artifact shape for %s", m.model.Path, m.model.Framework)
	}
	if !info.IsDir() && info.Size() == 0 {
		return fmt.Errorf("artifact %s: empty file", m.model.Path)
	}
	return nil
}

// loadAdapter runs while transitioning into loaded.
func (m *machine) loadAdapter(_, _ lifecycle.State) error {
	adapter, ok := m.adapters.Lookup(m.model.Framework)
	if !ok {
		return ErrAdapterUnavailable("no adapter registered for framework " + string(m.model.Framework))
	}
	h, err := adapter.Load(m.loadContext(), m.model)
	if err != nil {
		return fmt.Errorf("load %s: %w", m.model.ID, err)
	}
	m.mu.Lock()
	m.handle = h
	m.adapter = adapter
	m.allocID = m.tracker.Begin("model:"+m.model.ID, uint64(m.model.EstMemoryBytes))
	m.mu.Unlock()
	return nil
}

// unloadAdapter runs while transitioning into cleanup. Unload failures do
// not block cleanup; the handle is dropped either way.
func (m *machine) unloadAdapter(_, _ lifecycle.State) error {
	m.mu.Lock()
	h, adapter, allocID := m.handle, m.adapter, m.allocID
	m.handle, m.adapter, m.allocID = nil, nil, ""
	m.mu.Unlock()
	if allocID != "" {
		m.tracker.End(allocID)
	}
	if h == nil || adapter == nil {
		return nil
	}
	return adapter.Unload(h)
}

// runtime returns the adapter and handle once loaded.
func (m *machine) runtime() (routing.ExecutionAdapter, routing.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle == nil || m.adapter == nil {
		return nil, nil, false
	}
	return m.adapter, m.handle, true
}
