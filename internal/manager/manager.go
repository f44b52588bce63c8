package manager

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"runtimed/internal/lifecycle"
	"runtimed/internal/memory"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// Manager orchestrates one lifecycle machine per managed model around a
// shared memory monitor and a routing engine. Machines share no mutable
// state with each other; the monitor and threshold watcher are process-wide
// and injected at construction.
type Manager struct {
	models   map[string]types.Model
	order    []string
	machines map[string]*machine

	monitor  *memory.Monitor
	watcher  *memory.ThresholdWatcher
	tracker  *memory.AllocationTracker
	engine   *routing.Engine
	adapters *routing.AdapterRegistry
	fetcher  Fetcher
	leaks    *memory.LeakDetector

	publisher EventPublisher
	log       zerolog.Logger

	policyMu sync.RWMutex
	policy   routing.Policy

	startTime time.Time
}

func newManager(cfg ManagerConfig, logger zerolog.Logger) (*Manager, error) {
	m := &Manager{
		models:    make(map[string]types.Model, len(cfg.Models)),
		machines:  make(map[string]*machine, len(cfg.Models)),
		monitor:   cfg.Monitor,
		watcher:   cfg.Watcher,
		tracker:   cfg.Tracker,
		engine:    cfg.Engine,
		adapters:  cfg.Adapters,
		fetcher:   cfg.Fetcher,
		leaks:     memory.NewLeakDetector(cfg.Leaks),
		publisher: cfg.Publisher,
		log:       logger.With().Str("component", "manager").Logger(),
		policy:    cfg.Policy,
		startTime: time.Now(),
	}
	for _, model := range cfg.Models {
		if _, dup := m.models[model.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", model.ID)
		}
		mach, err := newMachine(model, m.adapters, m.tracker, m.log)
		if err != nil {
			return nil, fmt.Errorf("machine %s: %w", model.ID, err)
		}
		m.attachEventObserver(mach)
		m.models[model.ID] = model
		m.order = append(m.order, model.ID)
		m.machines[model.ID] = mach
	}
	m.watcher.OnCrossing(memory.ThresholdCritical, m.onCriticalCrossing)
	return m, nil
}

// attachEventObserver forwards one machine's transitions and errors to the
// event publisher.
func (m *Manager) attachEventObserver(mach *machine) {
	id := mach.model.ID
	mach.svc.AddObserver(&lifecycle.ObserverFuncs{
		StateChanged: func(from, to lifecycle.State) {
			m.publisher.Publish(Event{
				Name:    EventTransition,
				ModelID: id,
				Fields:  map[string]any{"from": string(from), "to": string(to)},
			})
		},
		Error: func(err error, state lifecycle.State) {
			m.publisher.Publish(Event{
				Name:    EventLifecycleError,
				ModelID: id,
				Fields:  map[string]any{"state": string(state), "error": err.Error()},
			})
		},
	})
}

// Start begins periodic memory sampling. Each sample feeds the threshold
// watcher, so crossing callbacks fire on the monitor goroutine.
func (m *Manager) Start() {
	m.monitor.Start(func(s memory.Sample) {
		m.watcher.Observe(s)
	})
}

// onCriticalCrossing forces machines out of their loaded states when
// available memory falls below the critical threshold. Recovery crossings
// are published but do not touch the machines.
func (m *Manager) onCriticalCrossing(ev memory.CrossingEvent) {
	m.publisher.Publish(Event{
		Name: EventMemoryCrossing,
		Fields: map[string]any{
			"kind":      string(ev.Kind),
			"crossed":   ev.Crossed,
			"available": ev.AvailableBytes,
		},
	})
	if !ev.Crossed {
		return
	}
	cause := fmt.Errorf("memory critical: %d bytes available", ev.AvailableBytes)
	for _, id := range m.order {
		mach := m.machines[id]
		switch mach.svc.CurrentState() {
		case lifecycle.StateLoading, lifecycle.StateLoaded, lifecycle.StateReady:
			if err := mach.svc.HandleError(cause); err != nil {
				m.log.Error().Err(err).Str("model", id).Msg("forcing error state failed")
			} else {
				m.log.Warn().Str("model", id).Msg("unloading model under critical memory pressure")
			}
		}
	}
}

// ListModels returns the managed models in discovery order.
func (m *Manager) ListModels() []types.Model {
	out := make([]types.Model, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.models[id])
	}
	return out
}

// Model returns the catalog entry for id.
func (m *Manager) Model(id string) (types.Model, error) {
	model, ok := m.models[id]
	if !ok {
		return types.Model{}, ErrModelNotFound(id)
	}
	return model, nil
}

// Lifecycle returns the state machine managing id.
func (m *Manager) Lifecycle(id string) (*lifecycle.Service, error) {
	mach, ok := m.machines[id]
	if !ok {
		return nil, ErrModelNotFound(id)
	}
	return mach.svc, nil
}

// Ready reports whether at least one machine is serving.
func (m *Manager) Ready() bool {
	for _, mach := range m.machines {
		switch mach.svc.CurrentState() {
		case lifecycle.StateReady, lifecycle.StateExecuting:
			return true
		}
	}
	return false
}

// SetPolicy swaps the routing policy, typically on config reload.
func (m *Manager) SetPolicy(p routing.Policy) {
	m.policyMu.Lock()
	m.policy = p
	m.policyMu.Unlock()
	m.log.Info().Str("provider", p.CloudProvider).Msg("routing policy updated")
}

// Policy returns the active routing policy.
func (m *Manager) Policy() routing.Policy {
	m.policyMu.RLock()
	defer m.policyMu.RUnlock()
	return m.policy
}

// Close stops sampling and resets every machine so cleanup hooks release
// adapter handles. Reset errors are logged, not returned: shutdown
// proceeds regardless.
func (m *Manager) Close() {
	m.monitor.Stop()
	for _, id := range m.order {
		mach := m.machines[id]
		if mach.svc.CurrentState() == lifecycle.StateUninitialized {
			continue
		}
		if err := mach.svc.Reset(); err != nil {
			m.log.Warn().Err(err).Str("model", id).Msg("reset on close failed")
		}
	}
}
