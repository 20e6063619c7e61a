package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks schema registry writes.
type Metrics struct {
	Writes        *prometheus.CounterVec
	Compensations *prometheus.CounterVec
}

// New registers the schema metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		Writes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_schema_writes_total",
			Help: "Schema registry writes, by operation and outcome (ok, ledger_error)",
		}, []string{"operation", "outcome"}),
		Compensations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vcanchor_schema_compensations_total",
			Help: "Compensating store writes after a ledger failure, by operation and result",
		}, []string{"operation", "result"}),
	}
}

func (m *Metrics) IncWrite(operation, outcome string) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) IncCompensation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Compensations.WithLabelValues(operation, result).Inc()
}
