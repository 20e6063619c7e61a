package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ledgerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "vcanchor_ledger_request_duration_seconds",
	Help:    "Latency of ledger gateway requests by contract method, kind and outcome",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
}, []string{"method", "kind", "outcome"})

func observe(method, kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ledgerDuration.WithLabelValues(method, kind, outcome).Observe(time.Since(start).Seconds())
}
