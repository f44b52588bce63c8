package memory

import (
	"fmt"
	"math"
)

// FragmentationSeverity buckets the overall fragmentation score.
type FragmentationSeverity string

const (
	FragmentationLow      FragmentationSeverity = "low"
	FragmentationModerate FragmentationSeverity = "moderate"
	FragmentationHigh     FragmentationSeverity = "high"
	FragmentationCritical FragmentationSeverity = "critical"
)

// FragmentationAnalysis is the result of one fragmentation scoring pass.
type FragmentationAnalysis struct {
	// Score is the overall [0,1] fragmentation estimate.
	Score float64
	// AllocationScore is the allocation-pattern component.
	AllocationScore float64
	// SystemScore is the system-pressure component.
	SystemScore     float64
	Severity        FragmentationSeverity
	Recommendations []string
}

// smallAllocationBytes is the cutoff below which an allocation counts as
// small for the fragmentation blend.
const smallAllocationBytes = 1024 * 1024

// Allocation-pattern blend weights: small-allocation ratio vs coefficient
// of variation of active allocation sizes.
const (
	smallRatioWeight = 0.4
	dispersionWeight = 0.6
)

// Overall blend weights: allocation pattern vs system pressure.
const (
	allocationWeight = 0.7
	systemWeight     = 0.3
)

// pressureFragmentation maps a system pressure level to a fixed score.
var pressureFragmentation = map[PressureLevel]float64{
	PressureNormal:   0,
	PressureWarning:  0.3,
	PressureUrgent:   0.6,
	PressureCritical: 0.9,
}

// FragmentationDetector scores memory fragmentation from allocation-size
// dispersion and the system pressure level. Stateless and read-only.
type FragmentationDetector struct{}

// NewFragmentationDetector constructs a detector.
func NewFragmentationDetector() *FragmentationDetector { return &FragmentationDetector{} }

// Analyze combines the allocation-pattern score (40% small-allocation
// ratio, 60% coefficient of variation of active sizes) with the
// system-pressure score into one [0,1] value.
func (d *FragmentationDetector) Analyze(allocations []Allocation, pressure PressureLevel) FragmentationAnalysis {
	allocScore := d.allocationScore(allocations)
	sysScore := pressureFragmentation[pressure]
	score := allocationWeight*allocScore + systemWeight*sysScore

	a := FragmentationAnalysis{
		Score:           score,
		AllocationScore: allocScore,
		SystemScore:     sysScore,
		Severity:        severityFor(score),
	}
	if score >= 0.7 {
		a.Recommendations = append(a.Recommendations,
			"fragmentation is severe: unload and reload models to compact memory")
	}
	if score >= 0.5 {
		a.Recommendations = append(a.Recommendations,
			"pool small allocations to reduce scatter")
	}
	if score >= 0.3 {
		a.Recommendations = append(a.Recommendations,
			fmt.Sprintf("monitor fragmentation (score %.2f)", score))
	}
	return a
}

func (d *FragmentationDetector) allocationScore(allocations []Allocation) float64 {
	var active []Allocation
	for _, a := range allocations {
		if a.Active {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return 0
	}

	small := 0
	var sum float64
	for _, a := range active {
		if a.CurrentSize < smallAllocationBytes {
			small++
		}
		sum += float64(a.CurrentSize)
	}
	smallRatio := float64(small) / float64(len(active))

	mean := sum / float64(len(active))
	var cv float64
	if mean > 0 {
		var variance float64
		for _, a := range active {
			d := float64(a.CurrentSize) - mean
			variance += d * d
		}
		variance /= float64(len(active))
		cv = math.Sqrt(variance) / mean
	}
	if cv > 1 {
		cv = 1
	}
	return smallRatioWeight*smallRatio + dispersionWeight*cv
}

func severityFor(score float64) FragmentationSeverity {
	switch {
	case score < 0.3:
		return FragmentationLow
	case score < 0.6:
		return FragmentationModerate
	case score < 0.8:
		return FragmentationHigh
	default:
		return FragmentationCritical
	}
}
