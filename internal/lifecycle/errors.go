package lifecycle

import "fmt"

// invalidTransitionError signals a requested transition absent from the table.
// Always recoverable; callers should inspect Allowed().
type invalidTransitionError struct{ from, to State }

func (e invalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.from, e.to)
}

// ErrInvalidTransition constructs an invalidTransitionError.
func ErrInvalidTransition(from, to State) error { return invalidTransitionError{from: from, to: to} }

// IsInvalidTransition reports whether err indicates a rejected transition.
func IsInvalidTransition(err error) bool {
	_, ok := err.(invalidTransitionError)
	return ok
}

// invalidStateError signals an operation invoked while the machine was not in
// the required state (e.g., ExecuteStateful outside ready).
type invalidStateError struct{ msg string }

func (e invalidStateError) Error() string { return e.msg }

// ErrInvalidState constructs an invalidStateError.
func ErrInvalidState(msg string) error { return invalidStateError{msg: msg} }

// IsInvalidState reports whether err indicates a wrong-state operation.
func IsInvalidState(err error) bool {
	_, ok := err.(invalidStateError)
	return ok
}

// noPathError signals that SkipToState found no route to the target.
type noPathError struct{ from, to State }

func (e noPathError) Error() string {
	return fmt.Sprintf("no path found: %s -> %s", e.from, e.to)
}

// ErrNoPath constructs a noPathError.
func ErrNoPath(from, to State) error { return noPathError{from: from, to: to} }

// IsNoPath reports whether err indicates an unreachable skip target.
func IsNoPath(err error) bool {
	_, ok := err.(noPathError)
	return ok
}

// hookError wraps a hook failure during an otherwise valid transition. The
// machine remains in its pre-transition state when this is returned.
type hookError struct {
	state State
	err   error
}

func (e hookError) Error() string {
	return fmt.Sprintf("hook failed in state %s: %v", e.state, e.err)
}

func (e hookError) Unwrap() error { return e.err }

// ErrHookFailure constructs a hookError.
func ErrHookFailure(state State, err error) error { return hookError{state: state, err: err} }

// IsHookFailure reports whether err indicates a failed transition hook.
func IsHookFailure(err error) bool {
	_, ok := err.(hookError)
	return ok
}
