package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts bearer token outcomes.
type Metrics struct {
	Authenticated prometheus.Counter
	Rejected      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Authenticated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcanchor_auth_authenticated_total",
			Help: "Bearer tokens accepted",
		}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_auth_rejected_total",
			Help: "Bearer tokens rejected by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncAuthenticated() {
	if m == nil {
		return
	}
	m.Authenticated.Inc()
}

func (m *Metrics) IncRejected(reason Reason) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(string(reason)).Inc()
}
