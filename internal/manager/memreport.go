package manager

import (
	"time"

	"runtimed/internal/memory"
)

// reportTrendWindow bounds how far back the report's trend analysis looks.
const reportTrendWindow = 5 * time.Minute

// MemoryReport is the full memory picture served by GET /memory: the
// current sample plus every derived analysis.
type MemoryReport struct {
	Stats           memory.Sample                `json:"stats"`
	Trend           *memory.Trend                `json:"trend,omitempty"`
	Leaks           []memory.Leak                `json:"leaks,omitempty"`
	Allocations     []memory.Allocation          `json:"allocations,omitempty"`
	Fragmentation   memory.FragmentationAnalysis `json:"fragmentation"`
	Recommendations []memory.Recommendation      `json:"recommendations,omitempty"`
	Crossings       []memory.CrossingEvent       `json:"crossings,omitempty"`
}

// MemoryReport records a fresh sample and assembles the derived analyses
// over the current window.
func (m *Manager) MemoryReport() MemoryReport {
	current := m.monitor.Record()
	window := m.monitor.Window()
	active := m.tracker.Active()

	leaks := m.leaks.Detect(active, time.Now())

	return MemoryReport{
		Stats:           current,
		Trend:           m.monitor.Trend(reportTrendWindow),
		Leaks:           leaks,
		Allocations:     active,
		Fragmentation:   memory.NewFragmentationDetector().Analyze(active, current.Pressure),
		Recommendations: memory.Recommend(current, leaks, window),
		Crossings:       m.watcher.History(),
	}
}
