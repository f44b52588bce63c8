package routing

import (
	"context"
	"sync"

	"runtimed/pkg/types"
)

// Handle is an opaque reference to a loaded model inside an adapter.
type Handle interface{}

// Result is the adapter's execution output.
type Result struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// ExecutionAdapter is the per-framework capability that actually runs
// inference. Implementations live outside this core; the engine only needs
// to know whether one is registered for a candidate's framework. Load and
// Run are invoked solely through the lifecycle's stateful execution path.
type ExecutionAdapter interface {
	Load(ctx context.Context, model types.Model) (Handle, error)
	Run(ctx context.Context, h Handle, req Request) (Result, error)
	Unload(h Handle) error
}

// AdapterRegistry is a typed registry of execution adapters keyed by
// framework. Absence is (nil, false), not a runtime probe.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[types.Framework]ExecutionAdapter
}

// NewAdapterRegistry constructs an empty registry.
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[types.Framework]ExecutionAdapter)}
}

// Register binds an adapter to a framework, replacing any previous binding.
func (r *AdapterRegistry) Register(fw types.Framework, a ExecutionAdapter) {
	r.mu.Lock()
	r.adapters[fw] = a
	r.mu.Unlock()
}

// Lookup returns the adapter for a framework, if registered.
func (r *AdapterRegistry) Lookup(fw types.Framework) (ExecutionAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[fw]
	return a, ok
}

// Frameworks lists the registered frameworks.
func (r *AdapterRegistry) Frameworks() []types.Framework {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Framework, 0, len(r.adapters))
	for fw := range r.adapters {
		out = append(out, fw)
	}
	return out
}
