// Package lifecycle tracks a managed model resource through its multi-stage
// life, from discovery through execution to cleanup. It is structured into
// small files by concern:
//
//   - state.go: State enum, transition Table, happy path, BFS path search.
//   - manager.go: StateManager, the single owner of current state + history.
//   - handler.go: transition validation, hooks, timing statistics.
//   - observer.go: observer registry and fan-out notification.
//   - service.go: Service, the public query/command surface.
//   - errors.go: error types and helpers (IsInvalidTransition, IsNoPath, ...).
//
// One Service instance manages exactly one resource; independent resources
// get independent Services with no shared mutable state. All transitions go
// through the validated path, including recovery to the error state.
package lifecycle
