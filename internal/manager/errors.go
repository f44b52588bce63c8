package manager

import "errors"

// modelNotFoundError signals a requested model id not present in the catalog.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound constructs a modelNotFoundError.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
// Matches through wrapped errors: hook failures arrive wrapped by the
// lifecycle layer.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

// adapterUnavailableError signals that no execution adapter is registered
// for a framework, so the HTTP layer can return 503 Service Unavailable
// instead of 500.
type adapterUnavailableError struct{ msg string }

func (e adapterUnavailableError) Error() string { return e.msg }

// ErrAdapterUnavailable constructs an adapterUnavailableError.
func ErrAdapterUnavailable(msg string) error { return adapterUnavailableError{msg: msg} }

// IsAdapterUnavailable reports whether err indicates a missing execution
// adapter.
func IsAdapterUnavailable(err error) bool {
	var e adapterUnavailableError
	return errors.As(err, &e)
}
