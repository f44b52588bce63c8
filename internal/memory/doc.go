// Package memory monitors process memory and derives actionable signals
// from it. It is structured into small files by concern:
//
//   - monitor.go: periodic sampler, rolling window, pressure levels.
//   - thresholds.go: hysteresis-based threshold crossing watcher.
//   - allocations.go: allocation tracker (begin/update/end records).
//   - leaks.go: leak detection over active allocations.
//   - trend.go: linear trend fitting, prediction, cycle detection.
//   - fragmentation.go: fragmentation scoring from allocation dispersion.
//   - recommend.go: ranked recommendations from the signals above.
//   - metrics.go: Prometheus gauges fed by the monitor.
//
// Everything below the monitor is query-only: detection and analysis
// functions never mutate their inputs and never return errors; absence of
// data is a nil result or an empty slice.
package memory
