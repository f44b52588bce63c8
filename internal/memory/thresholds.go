package memory

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ThresholdKind names one watched available-memory threshold.
type ThresholdKind string

const (
	ThresholdWarning  ThresholdKind = "warning"
	ThresholdCritical ThresholdKind = "critical"
	// Derived thresholds at half the configured warning/critical values.
	ThresholdLow     ThresholdKind = "low"
	ThresholdVeryLow ThresholdKind = "very_low"
)

// CrossingEvent records one threshold state flip. Crossed is true when
// available memory fell below the threshold, false when it recovered above
// the hysteresis bound.
type CrossingEvent struct {
	Kind           ThresholdKind
	Crossed        bool
	AvailableBytes uint64
	Timestamp      time.Time
}

// crossingLogCapacity bounds the append-only crossing history.
const crossingLogCapacity = 100

// defaultHysteresis is the fraction of the threshold value that available
// memory must recover beyond before the threshold is considered uncrossed.
const defaultHysteresis = 0.10

// WatcherConfig holds tunables for ThresholdWatcher construction.
type WatcherConfig struct {
	// WarningBytes and CriticalBytes default to the monitor's 512 MB and
	// 128 MB when zero.
	WarningBytes  uint64
	CriticalBytes uint64
	// Hysteresis defaults to 0.10 when zero.
	Hysteresis float64
	// Logger defaults to a disabled logger.
	Logger *zerolog.Logger
}

type watchedThreshold struct {
	kind    ThresholdKind
	value   uint64
	crossed bool
}

// ThresholdWatcher tracks, with hysteresis, whether available memory has
// crossed each configured threshold. Once crossed, a threshold only
// uncrosses when available memory rises above value*(1+hysteresis), which
// prevents rapid flapping around the boundary. Observe is designed to be
// called once per monitor tick; it is not reentrant across concurrent calls.
type ThresholdWatcher struct {
	hysteresis float64
	log        zerolog.Logger

	mu         sync.Mutex
	thresholds []*watchedThreshold
	callbacks  map[ThresholdKind]func(CrossingEvent)
	history    []CrossingEvent
}

// NewThresholdWatcher constructs a watcher over the warning and critical
// thresholds plus the derived low and very-low thresholds at half their
// respective values.
func NewThresholdWatcher(cfg WatcherConfig) *ThresholdWatcher {
	if cfg.WarningBytes == 0 {
		cfg.WarningBytes = defaultWarningBytes
	}
	if cfg.CriticalBytes == 0 {
		cfg.CriticalBytes = defaultCriticalBytes
	}
	h := cfg.Hysteresis
	if h <= 0 {
		h = defaultHysteresis
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &ThresholdWatcher{
		hysteresis: h,
		log:        logger.With().Str("component", "thresholds").Logger(),
		thresholds: []*watchedThreshold{
			{kind: ThresholdWarning, value: cfg.WarningBytes},
			{kind: ThresholdCritical, value: cfg.CriticalBytes},
			{kind: ThresholdLow, value: cfg.WarningBytes / 2},
			{kind: ThresholdVeryLow, value: cfg.CriticalBytes / 2},
		},
		callbacks: make(map[ThresholdKind]func(CrossingEvent)),
	}
}

// OnCrossing registers a callback invoked whenever the given threshold flips
// state. At most one callback per kind; a later registration replaces it.
func (w *ThresholdWatcher) OnCrossing(kind ThresholdKind, fn func(CrossingEvent)) {
	w.mu.Lock()
	w.callbacks[kind] = fn
	w.mu.Unlock()
}

// Observe evaluates every threshold against the sample, firing callbacks
// and appending crossing events on state flips.
func (w *ThresholdWatcher) Observe(s Sample) {
	w.mu.Lock()
	var fired []CrossingEvent
	for _, th := range w.thresholds {
		if th.value == 0 {
			continue
		}
		if !th.crossed && s.AvailableBytes < th.value {
			th.crossed = true
			fired = append(fired, w.appendEvent(th, true, s))
		} else if th.crossed && float64(s.AvailableBytes) > float64(th.value)*(1+w.hysteresis) {
			th.crossed = false
			fired = append(fired, w.appendEvent(th, false, s))
		}
	}
	callbacks := make([]func(CrossingEvent), len(fired))
	for i, ev := range fired {
		callbacks[i] = w.callbacks[ev.Kind]
	}
	w.mu.Unlock()

	for i, ev := range fired {
		w.log.Info().
			Str("threshold", string(ev.Kind)).
			Bool("crossed", ev.Crossed).
			Uint64("available", ev.AvailableBytes).
			Msg("threshold crossing")
		if fn := callbacks[i]; fn != nil {
			fn(ev)
		}
	}
}

func (w *ThresholdWatcher) appendEvent(th *watchedThreshold, crossed bool, s Sample) CrossingEvent {
	ev := CrossingEvent{
		Kind:           th.kind,
		Crossed:        crossed,
		AvailableBytes: s.AvailableBytes,
		Timestamp:      s.Timestamp,
	}
	w.history = append(w.history, ev)
	if len(w.history) > crossingLogCapacity {
		w.history = w.history[len(w.history)-crossingLogCapacity:]
	}
	return ev
}

// Crossed reports the current crossed state of one threshold.
func (w *ThresholdWatcher) Crossed(kind ThresholdKind) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, th := range w.thresholds {
		if th.kind == kind {
			return th.crossed
		}
	}
	return false
}

// History returns a copy of the retained crossing events, oldest first.
func (w *ThresholdWatcher) History() []CrossingEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CrossingEvent, len(w.history))
	copy(out, w.history)
	return out
}
