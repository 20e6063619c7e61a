package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks credential request decisions and the response leasing queue.
type Metrics struct {
	RequestsCreated  *prometheus.CounterVec
	RequestsDecided  *prometheus.CounterVec
	ProcessDuration  *prometheus.HistogramVec
	ResponsesClaimed prometheus.Counter
	ResponsesDone    prometheus.Counter
	ResponsesReset   prometheus.Counter
}

// New registers the credential metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		RequestsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_credential_requests_created_total",
			Help: "Credential requests created, by type",
		}, []string{"type"}),
		RequestsDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_credential_requests_decided_total",
			Help: "Credential request decisions, by type and outcome (approved, rejected, degraded, ledger_error)",
		}, []string{"type", "outcome"}),
		ProcessDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vcanchor_credential_process_duration_seconds",
			Help:    "Duration of Process, including the ledger round trip",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"type"}),
		ResponsesClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcanchor_credential_responses_claimed_total",
			Help: "Credential responses moved from PENDING to PROCESSING",
		}),
		ResponsesDone: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcanchor_credential_responses_confirmed_total",
			Help: "Credential responses confirmed and soft-deleted",
		}),
		ResponsesReset: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcanchor_credential_responses_reset_total",
			Help: "Stuck PROCESSING responses returned to PENDING",
		}),
	}
}

func (m *Metrics) IncCreated(typ string) {
	if m == nil {
		return
	}
	m.RequestsCreated.WithLabelValues(typ).Inc()
}

func (m *Metrics) IncDecided(typ, outcome string) {
	if m == nil {
		return
	}
	m.RequestsDecided.WithLabelValues(typ, outcome).Inc()
}

// ObserveProcess records a Process call. Call with time.Now() at the start.
func (m *Metrics) ObserveProcess(typ string, start time.Time) {
	if m == nil {
		return
	}
	m.ProcessDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddClaimed(n int) {
	if m == nil {
		return
	}
	m.ResponsesClaimed.Add(float64(n))
}

func (m *Metrics) AddConfirmed(n int) {
	if m == nil {
		return
	}
	m.ResponsesDone.Add(float64(n))
}

func (m *Metrics) AddReset(n int) {
	if m == nil {
		return
	}
	m.ResponsesReset.Add(float64(n))
}
