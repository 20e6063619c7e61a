// Package httptransport assembles the public HTTP surface: shared middleware,
// operational endpoints and the DID-authenticated API routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"vcanchor/internal/platform/metrics"
	"vcanchor/internal/platform/middleware"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/platform/middleware/metadata"
	"vcanchor/pkg/platform/middleware/requesttime"
)

const defaultHealthTimeout = 2 * time.Second

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router needs from main.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Authenticate guards every API route. Nil is only acceptable in tests.
	Authenticate func(http.Handler) http.Handler
	// RateLimit runs after authentication so budgets follow the subject DID.
	RateLimit      func(http.Handler) http.Handler
	RequestTimeout time.Duration
	HealthChecks   map[string]HealthCheck
	Modules        []Registrar
}

// NewRouter wires all public endpoints.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps.HealthChecks))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		if deps.RequestTimeout > 0 {
			api.Use(chimw.Timeout(deps.RequestTimeout))
		}
		if deps.Authenticate != nil {
			api.Use(deps.Authenticate)
		}
		if deps.RateLimit != nil {
			api.Use(deps.RateLimit)
		}
		for _, m := range deps.Modules {
			m.Register(api)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":             "not_found",
			"error_description": "route not found",
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check concurrently and answers 503 if any fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), defaultHealthTimeout)
		defer cancel()

		results := make([]string, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				results[i] = "ok"
				if err := checks[name](ctx); err != nil {
					results[i] = err.Error()
				}
				return nil
			})
		}
		_ = g.Wait()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for i, name := range names {
			resp.Checks[name] = results[i]
			if results[i] != "ok" {
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
