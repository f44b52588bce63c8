package memory

import (
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/mem"
)

// PressureLevel classifies how constrained available memory currently is.
type PressureLevel string

const (
	PressureNormal   PressureLevel = "normal"
	PressureWarning  PressureLevel = "warning"
	PressureUrgent   PressureLevel = "urgent"
	PressureCritical PressureLevel = "critical"
)

// Sample is one point-in-time memory observation.
type Sample struct {
	Timestamp      time.Time
	UsedBytes      uint64
	AvailableBytes uint64
	TotalBytes     uint64
	Pressure       PressureLevel
}

// Defaults applied when corresponding MonitorConfig fields are unset.
const (
	defaultInterval          = time.Second
	defaultProfilingInterval = 500 * time.Millisecond
	defaultWindowAge         = 5 * time.Minute
	defaultWindowCap         = 600
	defaultWarningBytes      = 512 * 1024 * 1024
	defaultCriticalBytes     = 128 * 1024 * 1024
)

// MonitorConfig holds tunables for Monitor construction.
type MonitorConfig struct {
	// Interval between samples. Defaults to 1s (use ProfilingInterval for
	// short profiling sessions).
	Interval time.Duration
	// WarningBytes and CriticalBytes are available-memory thresholds that
	// drive the discrete pressure level.
	WarningBytes  uint64
	CriticalBytes uint64
	// WindowAge and WindowCap bound the rolling sample window.
	WindowAge time.Duration
	WindowCap int
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger

	// sampler overrides platform sampling in tests.
	sampler func() Sample
}

// ProfilingInterval is the faster sampling cadence for profiling sessions.
func ProfilingInterval() time.Duration { return defaultProfilingInterval }

// Monitor samples process and system memory on a fixed interval and keeps a
// rolling window of samples bounded by both count and age. One Monitor is
// constructed per process and handed to consumers explicitly; its window may
// be read concurrently by any number of lifecycle machines.
type Monitor struct {
	cfg      MonitorConfig
	log      zerolog.Logger
	analyzer *TrendAnalyzer

	mu      sync.RWMutex
	window  []Sample
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewMonitor constructs a Monitor, applying defaults for unset fields.
func NewMonitor(cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.WarningBytes == 0 {
		cfg.WarningBytes = defaultWarningBytes
	}
	if cfg.CriticalBytes == 0 {
		cfg.CriticalBytes = defaultCriticalBytes
	}
	if cfg.WindowAge <= 0 {
		cfg.WindowAge = defaultWindowAge
	}
	if cfg.WindowCap <= 0 {
		cfg.WindowCap = defaultWindowCap
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Monitor{
		cfg:      cfg,
		log:      logger.With().Str("component", "memmon").Logger(),
		analyzer: NewTrendAnalyzer(),
	}
}

// CurrentStats takes a fresh sample without touching the window.
func (m *Monitor) CurrentStats() Sample { return m.sample() }

// Start begins periodic sampling, invoking callback (if non-nil) once per
// tick after the window is updated. Start is idempotent: a second call while
// already running is a no-op with a logged warning, not an error.
func (m *Monitor) Start(callback func(Sample)) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		m.log.Warn().Msg("monitor already running, start ignored")
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	m.log.Info().Dur("interval", m.cfg.Interval).Msg("monitor started")
	go m.loop(stopCh, done, callback)
}

// Stop ends periodic sampling and waits for the loop to exit. Stopping a
// monitor that is not running is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh, done := m.stopCh, m.done
	m.mu.Unlock()

	close(stopCh)
	<-done
	m.log.Info().Msg("monitor stopped")
}

func (m *Monitor) loop(stopCh <-chan struct{}, done chan<- struct{}, callback func(Sample)) {
	defer close(done)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s := m.Record()
			if callback != nil {
				callback(s)
			}
		}
	}
}

// Record takes one sample, appends it to the window, prunes by age and
// count, and updates the Prometheus gauges. Exposed so tests and profiling
// drivers can tick the monitor without the timer.
func (m *Monitor) Record() Sample {
	s := m.sample()
	m.mu.Lock()
	m.window = append(m.window, s)
	cutoff := s.Timestamp.Add(-m.cfg.WindowAge)
	start := 0
	for start < len(m.window) && m.window[start].Timestamp.Before(cutoff) {
		start++
	}
	if over := len(m.window) - start - m.cfg.WindowCap; over > 0 {
		start += over
	}
	if start > 0 {
		m.window = append(m.window[:0], m.window[start:]...)
	}
	m.mu.Unlock()
	observeSample(s)
	return s
}

// Window returns a copy of the retained samples, oldest first.
func (m *Monitor) Window() []Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Sample, len(m.window))
	copy(out, m.window)
	return out
}

// Trend analyzes the retained window intersected with d. It returns nil when
// fewer than 2 samples fall in range.
func (m *Monitor) Trend(d time.Duration) *Trend {
	cutoff := time.Now().Add(-d)
	m.mu.RLock()
	var in []Sample
	for _, s := range m.window {
		if !s.Timestamp.Before(cutoff) {
			in = append(in, s)
		}
	}
	m.mu.RUnlock()
	return m.analyzer.Analyze(in)
}

// sample reads used bytes from the Go runtime and system totals from the
// host, then classifies pressure from the configured byte thresholds.
func (m *Monitor) sample() Sample {
	if m.cfg.sampler != nil {
		return m.cfg.sampler()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s := Sample{
		Timestamp: time.Now(),
		UsedBytes: ms.Sys - ms.HeapReleased,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.AvailableBytes = vm.Available
		s.TotalBytes = vm.Total
	} else {
		m.log.Debug().Err(err).Msg("virtual memory read failed")
	}
	s.Pressure = m.classify(s.AvailableBytes)
	return s
}

func (m *Monitor) classify(available uint64) PressureLevel {
	switch {
	case available < m.cfg.CriticalBytes:
		return PressureCritical
	case available < m.cfg.WarningBytes:
		return PressureWarning
	default:
		return PressureNormal
	}
}
