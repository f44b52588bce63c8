// Package routing decides where inference requests execute: on device,
// in the cloud, or split across both. The engine is a pure function of a
// routing context assembled by the caller; it owns no I/O and keeps no
// state between calls.
//
// Files:
//   - types.go: routing context, policy, estimates, and decision types
//   - engine.go: the ordered decision rules
//   - registry.go: execution adapter interface and framework registry
//   - errors.go: typed routing errors and predicates
package routing
