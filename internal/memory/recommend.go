package memory

import (
	"fmt"
	"sort"
)

// Severity ranks a recommendation.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// RecommendationType names the class of action being recommended.
type RecommendationType string

const (
	RecommendUnloadModels        RecommendationType = "unload_models"
	RecommendRestart             RecommendationType = "restart"
	RecommendCompactMemory       RecommendationType = "compact_memory"
	RecommendOptimizeAllocations RecommendationType = "optimize_allocations"
)

// Recommendation is one ranked, severity-tagged suggested action.
type Recommendation struct {
	Type     RecommendationType
	Severity Severity
	Message  string
	Action   string
}

// Rule thresholds.
const (
	criticalUsageFraction = 0.90
	warningUsageFraction  = 0.75
	criticalLeakRate      = 2 * 1024 * 1024 // bytes/sec
	growthPerSampleLimit  = 5 * 1024 * 1024 // bytes/sample
	growthSampleWindow    = 10
)

// Recommend synthesizes monitor, leak and history signals into a ranked
// recommendation list, highest severity first. Pure function: identical
// inputs yield identical output.
func Recommend(current Sample, leaks []Leak, history []Sample) []Recommendation {
	var out []Recommendation

	if current.TotalBytes > 0 {
		usage := float64(current.UsedBytes) / float64(current.TotalBytes)
		switch {
		case usage > criticalUsageFraction:
			out = append(out, Recommendation{
				Type:     RecommendUnloadModels,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("memory usage at %.0f%% of physical memory", usage*100),
				Action:   "unload unused models immediately",
			})
		case usage > warningUsageFraction:
			out = append(out, Recommendation{
				Type:     RecommendUnloadModels,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("memory usage at %.0f%% of physical memory", usage*100),
				Action:   "unload unused models",
			})
		}
	}

	if len(leaks) > 0 {
		severity := SeverityWarning
		for _, l := range leaks {
			if l.GrowthRate > criticalLeakRate {
				severity = SeverityCritical
				break
			}
		}
		out = append(out, Recommendation{
			Type:     RecommendRestart,
			Severity: severity,
			Message:  fmt.Sprintf("%d suspected memory leak(s) detected", len(leaks)),
			Action:   "restart the runtime to reclaim leaked memory",
		})
	}

	if sustainedCritical(current, history) {
		out = append(out, Recommendation{
			Type:     RecommendCompactMemory,
			Severity: SeverityWarning,
			Message:  "memory pressure has been critical across the recent window",
			Action:   "compact memory by reloading the active model",
		})
	}

	if g := recentGrowthPerSample(history); g > growthPerSampleLimit {
		out = append(out, Recommendation{
			Type:     RecommendOptimizeAllocations,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("memory growing %.1f MB per sample", g/(1024*1024)),
			Action:   "optimize allocation patterns in the hot path",
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

// sustainedCritical reports whether pressure is critical now and across the
// recent history window.
func sustainedCritical(current Sample, history []Sample) bool {
	if current.Pressure != PressureCritical {
		return false
	}
	n := len(history)
	if n == 0 {
		return false
	}
	recent := history
	if n > growthSampleWindow {
		recent = history[n-growthSampleWindow:]
	}
	for _, s := range recent {
		if s.Pressure != PressureCritical {
			return false
		}
	}
	return true
}

// recentGrowthPerSample is the average used-bytes delta per sample over the
// last growthSampleWindow samples.
func recentGrowthPerSample(history []Sample) float64 {
	n := len(history)
	if n < 2 {
		return 0
	}
	recent := history
	if n > growthSampleWindow {
		recent = history[n-growthSampleWindow:]
	}
	first, last := recent[0], recent[len(recent)-1]
	return (float64(last.UsedBytes) - float64(first.UsedBytes)) / float64(len(recent)-1)
}
