package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the presentation exchange.
type Metrics struct {
	SharesStored   prometheus.Counter
	SharesConsumed *prometheus.CounterVec
	Verifications  *prometheus.CounterVec
}

// New registers the presentation metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		SharesStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vcanchor_vp_shares_stored_total",
			Help: "Presentations stored for pickup",
		}),
		SharesConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_vp_shares_consumed_total",
			Help: "Presentations consumed, by path (get, verify)",
		}, []string{"path"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_vp_verifications_total",
			Help: "Presentation verifications, by result (valid, invalid)",
		}, []string{"result"}),
	}
}

func (m *Metrics) IncStored() {
	if m == nil {
		return
	}
	m.SharesStored.Inc()
}

func (m *Metrics) IncConsumed(path string) {
	if m == nil {
		return
	}
	m.SharesConsumed.WithLabelValues(path).Inc()
}

func (m *Metrics) IncVerification(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Verifications.WithLabelValues(result).Inc()
}
