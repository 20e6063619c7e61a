package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_ratelimit_decisions_total",
			Help: "Rate limit checks by endpoint class and result (allowed, limited, error)",
		}, []string{"class", "result"}),
	}
}

func (m *Metrics) Inc(class, result string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(class, result).Inc()
}
