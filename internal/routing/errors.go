package routing

// routingError signals that no viable execution target exists. Surfaced to
// the caller; the engine never silently picks a default fallback.
type routingError struct{ reason Reason }

func (e routingError) Error() string { return "routing failed: " + string(e.reason) }

// ErrRoutingFailure constructs a routingError.
func ErrRoutingFailure(reason Reason) error { return routingError{reason: reason} }

// IsRoutingFailure reports whether err indicates no viable target.
func IsRoutingFailure(err error) bool {
	_, ok := err.(routingError)
	return ok
}
