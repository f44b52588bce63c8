// Package manager is the orchestration layer tying lifecycle machines,
// memory monitoring, and execution routing together. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, accessors, Start/Close.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - machine.go: per-model lifecycle machine wrapper and state hooks.
//   - ensure.go: EnsureReady drive loop and the fetch seam.
//   - execute.go: Execute and routing-context assembly.
//   - memreport.go: detailed memory report for the HTTP layer.
//   - status_report.go: Status aggregation.
//   - events.go: Event and EventPublisher.
//   - eventpub_memory.go: in-memory publisher for tests.
//   - errors.go: error types and helpers (IsModelNotFound, IsAdapterUnavailable).
//
// External packages should treat this package as the orchestration layer and
// use public methods only (NewWithConfig, Start, EnsureReady, Execute, Route,
// Status, MemoryReport, Lifecycle, Close). Internal types are subject to
// change.
package manager
