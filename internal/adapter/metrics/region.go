package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegionMetrics holds Prometheus metrics for region mutations.
type RegionMetrics struct {
	Mutations *prometheus.CounterVec
	Conflicts *prometheus.CounterVec
}

// NewRegionMetrics creates and registers region metrics on the given registry.
func NewRegionMetrics(reg prometheus.Registerer) *RegionMetrics {
	m := &RegionMetrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "mutations_total",
			Help:      "Total number of region mutations, by operation and result.",
		}, []string{"operation", "result"}),
		Conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "region",
			Name:      "conflicts_total",
			Help:      "Total number of rejected region writes, by conflict kind (overlap, version).",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.Mutations, m.Conflicts)
	return m
}
