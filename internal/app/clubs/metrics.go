package clubs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for registry operations.
type Metrics struct {
	Operations  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Unpublished prometheus.Counter
}

// NewMetrics registers the registry instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "club_registry_operations_total",
			Help: "Registry operations by operation and outcome (ok or error code).",
		}, []string{"operation", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "club_registry_operation_duration_seconds",
			Help:    "Latency of registry operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		Unpublished: f.NewCounter(prometheus.CounterOpts{
			Name: "club_registry_events_unpublished_total",
			Help: "Events that could not be appended to the event log.",
		}),
	}
}

func (m *Metrics) observe(op string, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) unpublished() {
	if m == nil {
		return
	}
	m.Unpublished.Inc()
}
