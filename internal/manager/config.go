package manager

import (
	"context"

	"github.com/rs/zerolog"

	"runtimed/internal/memory"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// Fetcher materializes a model artifact before the download stage
// completes. The default assumes artifacts are already on disk, which is
// what a registry scan produces.
type Fetcher interface {
	Fetch(ctx context.Context, m types.Model) error
}

// ManagerConfig encapsulates all tunables for Manager construction.
// Unset fields get package defaults in NewWithConfig.
type ManagerConfig struct {
	Models   []types.Model
	Monitor  *memory.Monitor
	Watcher  *memory.ThresholdWatcher
	Tracker  *memory.AllocationTracker
	Engine   *routing.Engine
	Adapters *routing.AdapterRegistry
	Policy   routing.Policy
	// Fetcher is consulted before the downloading stage completes; nil
	// means artifacts are expected on disk already.
	Fetcher   Fetcher
	Publisher EventPublisher
	Logger    *zerolog.Logger
	// Leaks tunes the leak detector behind MemoryReport; zero fields get
	// the memory package defaults.
	Leaks memory.LeakDetectorConfig
}

// NewWithConfig constructs a Manager from ManagerConfig, applying defaults
// for unset collaborators.
func NewWithConfig(cfg ManagerConfig) (*Manager, error) {
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	if cfg.Monitor == nil {
		cfg.Monitor = memory.NewMonitor(memory.MonitorConfig{})
	}
	if cfg.Watcher == nil {
		cfg.Watcher = memory.NewThresholdWatcher(memory.WatcherConfig{})
	}
	if cfg.Tracker == nil {
		cfg.Tracker = memory.NewAllocationTracker()
	}
	if cfg.Engine == nil {
		cfg.Engine = routing.NewEngine(cfg.Logger)
	}
	if cfg.Adapters == nil {
		cfg.Adapters = routing.NewAdapterRegistry()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	return newManager(cfg, logger)
}
