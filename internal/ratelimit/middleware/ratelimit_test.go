package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcanchor/internal/ratelimit/models"
	"vcanchor/internal/ratelimit/store"
	"vcanchor/pkg/platform/middleware/metadata"
	"vcanchor/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, models.Limit) (*models.Result, error) {
	return nil, errors.New("redis down")
}

type countingMetrics struct {
	counts map[string]int
}

func (c *countingMetrics) Inc(class, result string) {
	c.counts[class+"/"+result]++
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func request(method, did, ip string) *http.Request {
	req := httptest.NewRequest(method, "/schemas", nil)
	ctx := metadata.WithClient(req.Context(), metadata.Client{IP: ip})
	if did != "" {
		ctx = requestcontext.WithSubjectDID(ctx, did)
	}
	return req.WithContext(ctx)
}

func TestRateLimitPerCaller(t *testing.T) {
	metrics := &countingMetrics{counts: map[string]int{}}
	m := New(store.NewInMemoryStore(), map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 2, Window: time.Minute},
	}, discard(), WithMetrics(metrics))
	h := m.RateLimit(models.ClassWrite)(okHandler)

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(http.MethodPost, "did:example:alice", "10.0.0.1"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "did:example:alice", "10.0.0.2"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPost, "did:example:bob", "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rec.Code, "budgets are per DID, not per IP")

	assert.Equal(t, 3, metrics.counts["write/allowed"])
	assert.Equal(t, 1, metrics.counts["write/limited"])
}

func TestRateLimitAnonymousByIP(t *testing.T) {
	m := New(store.NewInMemoryStore(), map[models.EndpointClass]models.Limit{
		models.ClassRead: {Requests: 1, Window: time.Minute},
	}, discard())
	h := m.RateLimit(models.ClassRead)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "", "10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "", "10.0.0.2"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestByMethodSeparatesBudgets(t *testing.T) {
	m := New(store.NewInMemoryStore(), map[models.EndpointClass]models.Limit{
		models.ClassRead:  {Requests: 1, Window: time.Minute},
		models.ClassWrite: {Requests: 1, Window: time.Minute},
	}, discard())
	h := m.ByMethod(okHandler)

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request(method, "did:example:alice", ""))
		assert.Equal(t, http.StatusNoContent, rec.Code, method)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPut, "did:example:alice", ""))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitFailsOpen(t *testing.T) {
	metrics := &countingMetrics{counts: map[string]int{}}
	m := New(failingStore{}, map[models.EndpointClass]models.Limit{
		models.ClassWrite: {Requests: 1, Window: time.Minute},
	}, discard(), WithMetrics(metrics))

	rec := httptest.NewRecorder()
	m.RateLimit(models.ClassWrite)(okHandler).ServeHTTP(rec, request(http.MethodPost, "did:example:alice", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, metrics.counts["write/error"])
}

func TestRateLimitDisabledAndUnconfigured(t *testing.T) {
	limits := map[models.EndpointClass]models.Limit{models.ClassWrite: {Requests: 1, Window: time.Minute}}

	disabled := New(failingStore{}, limits, discard(), WithDisabled(true))
	rec := httptest.NewRecorder()
	disabled.RateLimit(models.ClassWrite)(okHandler).ServeHTTP(rec, request(http.MethodPost, "did:example:alice", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	unconfigured := New(failingStore{}, limits, discard())
	rec = httptest.NewRecorder()
	unconfigured.RateLimit(models.ClassRead)(okHandler).ServeHTTP(rec, request(http.MethodGet, "did:example:alice", ""))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestKeySanitizesDIDs(t *testing.T) {
	assert.Equal(t, "rl:write:did:did_example_alice", models.Key(models.ClassWrite, "did", "did:example:alice"))
}
