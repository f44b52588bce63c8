package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"runtimed/internal/lifecycle"
	"runtimed/internal/manager"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusForError maps well-known service errors to HTTP status codes:
// rejected transitions and wrong-state operations are conflicts, an
// unreachable skip target is unprocessable, missing models are 404, and a
// request with nowhere to run is 503. The orchestration layer wraps
// errors, so each link of the chain is inspected.
func statusForError(err error) int {
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch {
		case manager.IsModelNotFound(e):
			return http.StatusNotFound
		case lifecycle.IsInvalidTransition(e), lifecycle.IsInvalidState(e):
			return http.StatusConflict
		case lifecycle.IsNoPath(e):
			return http.StatusUnprocessableEntity
		case routing.IsRoutingFailure(e), manager.IsAdapterUnavailable(e):
			return http.StatusServiceUnavailable
		}
	}
	return http.StatusInternalServerError
}
