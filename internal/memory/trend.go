package memory

import (
	"math"
	"time"
)

// TrendDirection classifies the shape of memory usage over a window.
type TrendDirection string

const (
	TrendDecreasing        TrendDirection = "decreasing"
	TrendStable            TrendDirection = "stable"
	TrendIncreasing        TrendDirection = "increasing"
	TrendRapidlyIncreasing TrendDirection = "rapidly_increasing"
)

// Prediction is a linear extrapolation of used memory at one horizon.
type Prediction struct {
	Horizon   time.Duration
	UsedBytes uint64
	// Confidence is the R² of the underlying regression.
	Confidence float64
}

// Trend summarizes memory usage over a sample window.
type Trend struct {
	Direction TrendDirection
	// GrowthRateBytesPerSec is (last.used - first.used) / elapsed.
	GrowthRateBytesPerSec float64
	// Acceleration is the growth rate of the second half of the window
	// minus that of the first half.
	Acceleration float64
	Predicted    []Prediction
	// TimeToLimit is the time until used memory reaches 90% of total
	// physical memory at the current growth rate; nil when not growing.
	TimeToLimit *time.Duration
}

// Regression is an ordinary least-squares fit of used memory against
// elapsed time.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	// IsSignificant is true when RSquared exceeds 0.7.
	IsSignificant bool
}

// Cycle is a detected periodic usage pattern.
type Cycle struct {
	Period time.Duration
	// Amplitude is max-min used bytes over the window.
	Amplitude uint64
	// Confidence is the normalized autocorrelation at the period.
	Confidence float64
}

// memoryLimitFraction is the share of total physical memory treated as the
// usable ceiling for time-to-limit prediction.
const memoryLimitFraction = 0.9

// predictionHorizons are the fixed extrapolation horizons.
var predictionHorizons = []time.Duration{5 * time.Minute, 10 * time.Minute, 30 * time.Minute}

// TrendAnalyzer fits linear trends to memory samples and derives
// predictions from them. It is stateless; every method is a pure function
// of its inputs.
type TrendAnalyzer struct{}

// NewTrendAnalyzer constructs an analyzer.
func NewTrendAnalyzer() *TrendAnalyzer { return &TrendAnalyzer{} }

// Analyze fits a trend over the window. It returns nil when fewer than 2
// samples are given.
func (a *TrendAnalyzer) Analyze(samples []Sample) *Trend {
	if len(samples) < 2 {
		return nil
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = (float64(last.UsedBytes) - float64(first.UsedBytes)) / elapsed
	}

	t := &Trend{
		Direction:             a.direction(samples),
		GrowthRateBytesPerSec: rate,
		Acceleration:          a.acceleration(samples),
		Predicted:             a.Predict(samples, rate),
	}
	if last.TotalBytes > 0 {
		t.TimeToLimit = a.TimeToLimit(last.UsedBytes, rate, last.TotalBytes)
	}
	return t
}

// direction classifies by the percent change between the mean of the first
// quartile of the window and the mean of the last quartile.
func (a *TrendAnalyzer) direction(samples []Sample) TrendDirection {
	q := len(samples) / 4
	if q < 1 {
		q = 1
	}
	var firstSum, lastSum float64
	for _, s := range samples[:q] {
		firstSum += float64(s.UsedBytes)
	}
	for _, s := range samples[len(samples)-q:] {
		lastSum += float64(s.UsedBytes)
	}
	firstAvg, lastAvg := firstSum/float64(q), lastSum/float64(q)
	if firstAvg == 0 {
		return TrendStable
	}
	change := (lastAvg - firstAvg) / firstAvg * 100
	switch {
	case change < -10:
		return TrendDecreasing
	case change <= 10:
		return TrendStable
	case change <= 50:
		return TrendIncreasing
	default:
		return TrendRapidlyIncreasing
	}
}

// acceleration is the second-half growth rate minus the first-half rate.
func (a *TrendAnalyzer) acceleration(samples []Sample) float64 {
	if len(samples) < 4 {
		return 0
	}
	mid := len(samples) / 2
	return a.rate(samples[mid:]) - a.rate(samples[:mid])
}

func (a *TrendAnalyzer) rate(samples []Sample) float64 {
	if len(samples) < 2 {
		return 0
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return (float64(last.UsedBytes) - float64(first.UsedBytes)) / elapsed
}

// Predict extrapolates used memory linearly at +5, +10 and +30 minutes,
// clamped to zero, with confidence equal to the regression's R².
func (a *TrendAnalyzer) Predict(samples []Sample, growthRate float64) []Prediction {
	if len(samples) == 0 {
		return nil
	}
	var confidence float64
	if reg := a.Regression(samples); reg != nil {
		confidence = reg.RSquared
	}
	current := float64(samples[len(samples)-1].UsedBytes)
	out := make([]Prediction, 0, len(predictionHorizons))
	for _, h := range predictionHorizons {
		predicted := current + growthRate*h.Seconds()
		if predicted < 0 {
			predicted = 0
		}
		out = append(out, Prediction{
			Horizon:    h,
			UsedBytes:  uint64(predicted),
			Confidence: confidence,
		})
	}
	return out
}

// TimeToLimit returns the time until used memory reaches 90% of totalBytes
// assuming constant growthRate, or nil when growthRate is not positive.
// A zero duration means the limit has already been reached.
func (a *TrendAnalyzer) TimeToLimit(currentUsed uint64, growthRate float64, totalBytes uint64) *time.Duration {
	if growthRate <= 0 || totalBytes == 0 {
		return nil
	}
	limit := float64(totalBytes) * memoryLimitFraction
	remaining := limit - float64(currentUsed)
	if remaining <= 0 {
		d := time.Duration(0)
		return &d
	}
	d := time.Duration(remaining / growthRate * float64(time.Second))
	return &d
}

// Regression computes an ordinary least-squares fit of used memory against
// elapsed seconds. It requires at least 3 points and returns nil otherwise.
func (a *TrendAnalyzer) Regression(samples []Sample) *Regression {
	n := len(samples)
	if n < 3 {
		return nil
	}
	t0 := samples[0].Timestamp
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := s.Timestamp.Sub(t0).Seconds()
		y := float64(s.UsedBytes)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssTot, ssRes float64
	for _, s := range samples {
		x := s.Timestamp.Sub(t0).Seconds()
		y := float64(s.UsedBytes)
		fit := slope*x + intercept
		ssTot += (y - meanY) * (y - meanY)
		ssRes += (y - fit) * (y - fit)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return &Regression{
		Slope:         slope,
		Intercept:     intercept,
		RSquared:      r2,
		IsSignificant: r2 > 0.7,
	}
}

// cycleCandidates are the lag offsets, in samples, probed for periodicity.
var cycleCandidates = []int{5, 10, 15, 20, 30, 60}

// cycleAcceptThreshold is the minimum normalized autocorrelation for a
// candidate period to be reported.
const cycleAcceptThreshold = 0.5

// DetectCycles probes a small set of candidate periods with normalized
// autocorrelation and reports those above the acceptance threshold. It
// requires at least 20 samples.
func (a *TrendAnalyzer) DetectCycles(samples []Sample) []Cycle {
	n := len(samples)
	if n < 20 {
		return nil
	}
	var mean float64
	minUsed, maxUsed := samples[0].UsedBytes, samples[0].UsedBytes
	for _, s := range samples {
		mean += float64(s.UsedBytes)
		if s.UsedBytes < minUsed {
			minUsed = s.UsedBytes
		}
		if s.UsedBytes > maxUsed {
			maxUsed = s.UsedBytes
		}
	}
	mean /= float64(n)

	var variance float64
	for _, s := range samples {
		d := float64(s.UsedBytes) - mean
		variance += d * d
	}
	if variance == 0 {
		return nil
	}

	spacing := samples[n-1].Timestamp.Sub(samples[0].Timestamp) / time.Duration(n-1)
	var cycles []Cycle
	for _, lag := range cycleCandidates {
		if lag >= n/2 {
			continue
		}
		var acf float64
		for i := 0; i+lag < n; i++ {
			acf += (float64(samples[i].UsedBytes) - mean) * (float64(samples[i+lag].UsedBytes) - mean)
		}
		acf /= variance
		if acf > cycleAcceptThreshold {
			cycles = append(cycles, Cycle{
				Period:     time.Duration(lag) * spacing,
				Amplitude:  maxUsed - minUsed,
				Confidence: math.Min(acf, 1),
			})
		}
	}
	return cycles
}
