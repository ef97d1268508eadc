package mutate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Sessions      *prometheus.CounterVec
	Writes        prometheus.Counter
	CommitSeconds prometheus.Histogram
	InFlight      prometheus.Gauge
}

// NewMetrics registers the coordinator collectors on reg. A nil reg yields working but
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagecraft",
			Subsystem: "reorder",
			Name:      "sessions_total",
			Help:      "Reordering sessions by outcome.",
		}, []string{"outcome"}),
		Writes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pagecraft",
			Subsystem: "reorder",
			Name:      "writes_total",
			Help:      "Document writes submitted in committed batches.",
		}),
		CommitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pagecraft",
			Subsystem: "reorder",
			Name:      "commit_seconds",
			Help:      "Latency of atomic batch commits.",
			Buckets:   prometheus.DefBuckets,
		}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pagecraft",
			Subsystem: "reorder",
			Name:      "sessions_in_flight",
			Help:      "1 while a session is applied but unresolved.",
		}),
	}
}
