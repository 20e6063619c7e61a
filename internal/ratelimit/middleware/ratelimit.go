// Package middleware throttles API callers per endpoint class. Authenticated
// requests are counted against the subject DID, anonymous ones against the
// client IP.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"vcanchor/internal/ratelimit/models"
	"vcanchor/pkg/platform/httputil"
	"vcanchor/pkg/platform/middleware/metadata"
	"vcanchor/pkg/requestcontext"
)

// Store records requests in sliding windows.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error)
}

// Metrics is satisfied by *metrics.Metrics.
type Metrics interface {
	Inc(class, result string)
}

type Middleware struct {
	store    Store
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
	metrics  Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// New builds the middleware. Classes missing from limits are not throttled.
func New(store Store, limits map[models.EndpointClass]models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limits: limits,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// ByMethod throttles safe methods as reads and everything else as writes.
func (m *Middleware) ByMethod(next http.Handler) http.Handler {
	read := m.RateLimit(models.ClassRead)(next)
	write := m.RateLimit(models.ClassWrite)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			read.ServeHTTP(w, r)
		default:
			write.ServeHTTP(w, r)
		}
	})
}

// RateLimit throttles every request as class. Store errors fail open.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limit, ok := m.limits[class]
		if m.disabled || !ok || limit.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			kind, caller := "did", requestcontext.SubjectDID(ctx)
			if caller == "" {
				kind, caller = "ip", metadata.ClientFrom(ctx).IP
			}

			result, err := m.store.Allow(ctx, models.Key(class, kind, caller), limit)
			if err != nil {
				m.inc(class, "error")
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"class", class,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.inc(class, "limited")
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"caller_kind", kind,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			m.inc(class, "allowed")
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) inc(class models.EndpointClass, result string) {
	if m.metrics != nil {
		m.metrics.Inc(string(class), result)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
