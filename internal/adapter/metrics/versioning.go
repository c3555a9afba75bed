package metrics

import "github.com/prometheus/client_golang/prometheus"

// VersionMetrics holds Prometheus metrics for layout versioning.
type VersionMetrics struct {
	Operations      *prometheus.CounterVec
	NumberConflicts prometheus.Counter
}

// NewVersionMetrics creates and registers versioning metrics on the given registry.
func NewVersionMetrics(reg prometheus.Registerer) *VersionMetrics {
	m := &VersionMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "version",
			Name:      "operations_total",
			Help:      "Total number of versioning operations, by operation and result.",
		}, []string{"operation", "result"}),
		NumberConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "version",
			Name:      "number_conflicts_total",
			Help:      "Total number of version-number collisions retried.",
		}),
	}

	reg.MustRegister(m.Operations, m.NumberConflicts)
	return m
}
