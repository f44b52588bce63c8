package manager

import (
	"context"
	"fmt"

	"runtimed/internal/memory"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// ExecuteResult pairs a routing decision with the local execution output.
// Delegated is true for cloud-bound work: the daemon does not proxy cloud
// inference, it tells the client where the request belongs.
type ExecuteResult struct {
	Decision  routing.Decision
	Result    routing.Result
	Delegated bool
}

// RoutingContext assembles the engine input for one request. Candidates are
// the managed models with a registered adapter; resources come from a fresh
// monitor sample.
func (m *Manager) RoutingContext(req routing.Request) routing.Context {
	return routing.Context{
		Request:    req,
		Candidates: m.candidates(),
		Resources:  m.resourceSnapshot(),
		Policy:     m.Policy(),
	}
}

// Route decides a target without executing. Unset context fields are
// filled from the manager's own view, so callers may supply as little as
// the request.
func (m *Manager) Route(rc routing.Context) (routing.Decision, error) {
	if rc.Candidates == nil {
		rc.Candidates = m.candidates()
	}
	if rc.Resources.TotalMemoryBytes == 0 {
		rc.Resources = m.resourceSnapshot()
	}
	if rc.Policy == (routing.Policy{}) {
		rc.Policy = m.Policy()
	}
	return m.engine.Decide(rc)
}

// Execute routes a request and, for on-device targets, runs it inside the
// chosen model's stateful execution window.
func (m *Manager) Execute(ctx context.Context, req routing.Request) (ExecuteResult, error) {
	decision, err := m.engine.Decide(m.RoutingContext(req))
	if err != nil {
		return ExecuteResult{}, err
	}
	m.publisher.Publish(Event{
		Name:    EventRouted,
		ModelID: req.Model,
		Fields:  map[string]any{"target": string(decision.Target), "reason": string(decision.Reason)},
	})

	if decision.Target == routing.TargetCloud {
		return ExecuteResult{Decision: decision, Delegated: true}, nil
	}

	// On-device and hybrid both need the local model serving. The hybrid
	// cloud share is the client's to dispatch, same as full cloud.
	modelID, err := m.pickModel(req, decision)
	if err != nil {
		return ExecuteResult{}, err
	}
	if err := m.EnsureReady(ctx, modelID); err != nil {
		return ExecuteResult{}, err
	}

	mach := m.machines[modelID]
	var result routing.Result
	err = mach.svc.ExecuteStateful(ctx, func(ctx context.Context) error {
		adapter, handle, ok := mach.runtime()
		if !ok {
			return ErrAdapterUnavailable("model " + modelID + " has no live adapter handle")
		}
		var runErr error
		result, runErr = adapter.Run(ctx, handle, req)
		return runErr
	})
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{Decision: decision, Result: result}, nil
}

// pickModel resolves the decision to a concrete managed model.
func (m *Manager) pickModel(req routing.Request, d routing.Decision) (string, error) {
	if req.Model != "" {
		if _, ok := m.models[req.Model]; !ok {
			return "", ErrModelNotFound(req.Model)
		}
		return req.Model, nil
	}
	var best *types.Model
	for _, id := range m.order {
		model := m.models[id]
		if model.Framework != d.Framework {
			continue
		}
		if best == nil || model.EstMemoryBytes < best.EstMemoryBytes {
			candidate := model
			best = &candidate
		}
	}
	if best == nil {
		return "", ErrModelNotFound(fmt.Sprintf("framework %s", d.Framework))
	}
	return best.ID, nil
}

// candidates lists the managed models whose framework has a registered
// execution adapter.
func (m *Manager) candidates() []types.Model {
	var out []types.Model
	for _, id := range m.order {
		model := m.models[id]
		if _, ok := m.adapters.Lookup(model.Framework); ok {
			out = append(out, model)
		}
	}
	return out
}

// resourceSnapshot converts a fresh memory sample into the engine's view.
func (m *Manager) resourceSnapshot() routing.ResourceSnapshot {
	s := m.monitor.CurrentStats()
	return routing.ResourceSnapshot{
		AvailableMemoryBytes: s.AvailableBytes,
		TotalMemoryBytes:     s.TotalBytes,
		PressureCritical:     s.Pressure == memory.PressureCritical || m.watcher.Crossed(memory.ThresholdCritical),
	}
}
