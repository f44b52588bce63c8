package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"runtimed/internal/lifecycle"
	"runtimed/internal/manager"
	"runtimed/internal/routing"
	"runtimed/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Status() types.StatusResponse
	MemoryReport() manager.MemoryReport
	Route(rc routing.Context) (routing.Decision, error)
	Execute(ctx context.Context, req routing.Request) (manager.ExecuteResult, error)
	Lifecycle(id string) (*lifecycle.Service, error)
	Ready() bool
}

// lifecycleResponse is the payload for GET /lifecycle/{model}.
type lifecycleResponse struct {
	types.LifecycleStatus
	History []historyEntry `json:"history"`
}

type historyEntry struct {
	State      string `json:"state"`
	At         int64  `json:"at_unix"`
	DurationMS int64  `json:"duration_ms"`
}

// advanceRequest is the optional body for POST /lifecycle/{model}/advance.
// An empty target advances one step along the happy path; a named target
// skips there along the shortest valid path.
type advanceRequest struct {
	Target string `json:"target,omitempty" example:"ready"`
}

type advanceResponse struct {
	ModelID string   `json:"model_id"`
	State   string   `json:"state"`
	Allowed []string `json:"allowed"`
}

// executeResponse is the payload for POST /execute. For delegated targets
// Result is omitted: the daemon routes, the client dispatches.
type executeResponse struct {
	Decision  routing.Decision `json:"decision"`
	Delegated bool             `json:"delegated"`
	Result    *routing.Result  `json:"result,omitempty"`
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/memory", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.MemoryReport())
	})

	r.Post("/route", func(w http.ResponseWriter, r *http.Request) {
		var rc routing.Context
		if !decodeJSONBody(w, r, &rc) {
			return
		}
		decision, err := svc.Route(rc)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		RecordRoutingDecision(string(decision.Target), string(decision.Reason))
		writeJSON(w, decision)
	})

	r.Post("/execute", func(w http.ResponseWriter, r *http.Request) {
		var req routing.Request
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Prompt) == "" {
			writeJSONError(w, http.StatusBadRequest, "prompt is required")
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("path", r.URL.Path).Str("model", req.Model)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Msg("execute start")
		}

		// Join server base context with request context so shutdown
		// cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if executeTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(executeTimeout)*time.Second)
			defer tcancel()
		}

		res, err := svc.Execute(ctx, req)
		if err != nil {
			// Client disconnect or shutdown: nothing useful to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusForError(err)
			writeJSONError(w, status, err.Error())
			if lvl >= LevelInfo && zlog != nil {
				zlog.Info().Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("execute end")
			}
			return
		}
		RecordRoutingDecision(string(res.Decision.Target), string(res.Decision.Reason))
		out := executeResponse{Decision: res.Decision, Delegated: res.Delegated}
		if !res.Delegated {
			out.Result = &res.Result
		}
		writeJSON(w, out)
		if lvl >= LevelInfo && zlog != nil {
			zlog.Info().Int("status", 200).Dur("dur", time.Since(start)).Msg("execute end")
		}
	})

	r.Get("/lifecycle/{model}", func(w http.ResponseWriter, r *http.Request) {
		svcLC, err := svc.Lifecycle(chi.URLParam(r, "model"))
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, lifecycleView(chi.URLParam(r, "model"), svcLC))
	})

	r.Post("/lifecycle/{model}/advance", func(w http.ResponseWriter, r *http.Request) {
		modelID := chi.URLParam(r, "model")
		svcLC, err := svc.Lifecycle(modelID)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		var req advanceRequest
		if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
			return
		}
		if req.Target == "" {
			err = svcLC.ProgressToNext()
		} else {
			err = svcLC.SkipToState(lifecycle.State(req.Target))
		}
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		allowed := svcLC.Allowed()
		allowedStr := make([]string, len(allowed))
		for i, st := range allowed {
			allowedStr[i] = string(st)
		}
		writeJSON(w, advanceResponse{
			ModelID: modelID,
			State:   string(svcLC.CurrentState()),
			Allowed: allowedStr,
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// decodeJSONBody enforces content type and body size, then decodes into v.
// On failure it writes the error response and returns false.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies surface here too; 400 avoids leaking limits.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func lifecycleView(modelID string, s *lifecycle.Service) lifecycleResponse {
	stats := s.Stats()
	allowed := s.Allowed()
	allowedStr := make([]string, len(allowed))
	for i, st := range allowed {
		allowedStr[i] = string(st)
	}
	records := s.History()
	history := make([]historyEntry, len(records))
	for i, rec := range records {
		history[i] = historyEntry{
			State:      string(rec.State),
			At:         rec.At.Unix(),
			DurationMS: rec.Duration.Milliseconds(),
		}
	}
	return lifecycleResponse{
		LifecycleStatus: types.LifecycleStatus{
			ModelID:             modelID,
			State:               string(stats.State),
			Allowed:             allowedStr,
			Transitions:         stats.TotalTransitions,
			Errors:              stats.ErrorCount,
			AvgTransitionMillis: stats.AverageTransitionTime.Milliseconds(),
			LastError:           stats.LastError,
			Observers:           stats.ObserverCount,
		},
		History: history,
	}
}
