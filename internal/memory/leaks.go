package memory

import "time"

// Leak describes one suspected leaking allocation.
type Leak struct {
	ID          string
	Name        string
	InitialSize uint64
	CurrentSize uint64
	// GrowthRate is the average growth in bytes per second since Begin.
	GrowthRate float64
	Duration   time.Duration
}

// Defaults applied when corresponding LeakDetectorConfig fields are unset.
const (
	defaultLeakMinDuration  = 30 * time.Second
	defaultLeakGrowthRate   = 1024.0 // bytes/sec
	defaultLeakAbsoluteSize = 10 * 1024 * 1024
)

// LeakDetectorConfig holds the two tunable criteria plus the absolute size
// backstop.
type LeakDetectorConfig struct {
	// MinDuration is the minimum observation window before growth rate is
	// considered meaningful.
	MinDuration time.Duration
	// GrowthRateBytesPerSec is the sustained growth rate that flags a leak.
	GrowthRateBytesPerSec float64
	// AbsoluteSizeBytes flags any allocation this large regardless of rate.
	AbsoluteSizeBytes uint64
}

// LeakDetector flags allocations whose size grows without bound. Detection
// is read-only over the records and can be invoked repeatedly.
type LeakDetector struct {
	cfg LeakDetectorConfig
}

// NewLeakDetector constructs a detector, applying defaults for unset fields.
func NewLeakDetector(cfg LeakDetectorConfig) *LeakDetector {
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = defaultLeakMinDuration
	}
	if cfg.GrowthRateBytesPerSec <= 0 {
		cfg.GrowthRateBytesPerSec = defaultLeakGrowthRate
	}
	if cfg.AbsoluteSizeBytes == 0 {
		cfg.AbsoluteSizeBytes = defaultLeakAbsoluteSize
	}
	return &LeakDetector{cfg: cfg}
}

// Detect scans the given active allocations and returns the suspected
// leaks. An allocation is flagged when its observation window has reached
// MinDuration and its average growth rate has reached the configured rate
// (both bounds inclusive), or when its current size alone has reached the
// absolute size backstop. The dual criterion catches both slow sustained
// growth and single large un-released allocations.
func (d *LeakDetector) Detect(allocations []Allocation, now time.Time) []Leak {
	var leaks []Leak
	for _, a := range allocations {
		if !a.Active {
			continue
		}
		dur := now.Sub(a.StartTime)
		var rate float64
		if secs := dur.Seconds(); secs > 0 && a.CurrentSize > a.InitialSize {
			rate = float64(a.CurrentSize-a.InitialSize) / secs
		}
		sustained := dur >= d.cfg.MinDuration && rate >= d.cfg.GrowthRateBytesPerSec
		oversized := a.CurrentSize >= d.cfg.AbsoluteSizeBytes
		if !sustained && !oversized {
			continue
		}
		leaks = append(leaks, Leak{
			ID:          a.ID,
			Name:        a.Name,
			InitialSize: a.InitialSize,
			CurrentSize: a.CurrentSize,
			GrowthRate:  rate,
			Duration:    dur,
		})
	}
	return leaks
}
