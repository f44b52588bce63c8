//go:build !swagger

package httpapi

import "github.com/go-chi/chi/v5"

// MountSwagger does nothing in default builds. The swagger UI is mounted
// only when built with -tags=swagger.
func MountSwagger(r chi.Router) {}
