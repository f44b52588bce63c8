package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func activeAlloc(size uint64) Allocation {
	return Allocation{CurrentSize: size, StartTime: time.Now(), Active: true}
}

func TestFragmentationNoAllocations(t *testing.T) {
	a := NewFragmentationDetector().Analyze(nil, PressureNormal)
	assert.Zero(t, a.Score)
	assert.Equal(t, FragmentationLow, a.Severity)
	assert.Empty(t, a.Recommendations)
}

func TestFragmentationUniformLargeAllocations(t *testing.T) {
	// Identical large allocations: no small-allocation ratio, zero
	// dispersion, no system pressure.
	allocs := []Allocation{activeAlloc(10 * mb), activeAlloc(10 * mb), activeAlloc(10 * mb)}
	a := NewFragmentationDetector().Analyze(allocs, PressureNormal)
	assert.Zero(t, a.AllocationScore)
	assert.Zero(t, a.Score)
}

func TestFragmentationManySmallAllocations(t *testing.T) {
	var allocs []Allocation
	for i := 0; i < 20; i++ {
		allocs = append(allocs, activeAlloc(4096))
	}
	a := NewFragmentationDetector().Analyze(allocs, PressureNormal)
	// All small, but uniform sizes: 0.4*1 + 0.6*0 = 0.4 allocation score.
	assert.InDelta(t, 0.4, a.AllocationScore, 1e-9)
	assert.InDelta(t, 0.28, a.Score, 1e-9)
	assert.Equal(t, FragmentationLow, a.Severity)
}

func TestFragmentationSystemPressureComponent(t *testing.T) {
	cases := []struct {
		pressure PressureLevel
		want     float64
	}{
		{PressureNormal, 0},
		{PressureWarning, 0.3},
		{PressureUrgent, 0.6},
		{PressureCritical, 0.9},
	}
	for _, tc := range cases {
		a := NewFragmentationDetector().Analyze(nil, tc.pressure)
		assert.InDelta(t, tc.want, a.SystemScore, 1e-9, "pressure %s", tc.pressure)
		assert.InDelta(t, 0.3*tc.want, a.Score, 1e-9)
	}
}

func TestFragmentationSeverityBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  FragmentationSeverity
	}{
		{0.0, FragmentationLow},
		{0.29, FragmentationLow},
		{0.3, FragmentationModerate},
		{0.59, FragmentationModerate},
		{0.6, FragmentationHigh},
		{0.79, FragmentationHigh},
		{0.8, FragmentationCritical},
		{1.0, FragmentationCritical},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, severityFor(tc.score), "score %.2f", tc.score)
	}
}

func TestFragmentationRecommendations(t *testing.T) {
	// Mixed small and large allocations under critical pressure push the
	// score over the recommendation thresholds.
	var allocs []Allocation
	for i := 0; i < 30; i++ {
		allocs = append(allocs, activeAlloc(1024))
	}
	allocs = append(allocs, activeAlloc(500*mb))
	a := NewFragmentationDetector().Analyze(allocs, PressureCritical)
	assert.GreaterOrEqual(t, a.Score, 0.7)
	assert.NotEmpty(t, a.Recommendations)
	assert.Len(t, a.Recommendations, 3)
}
