package metrics

import "github.com/prometheus/client_golang/prometheus"

// EventMetrics holds Prometheus metrics for domain event delivery.
type EventMetrics struct {
	Appended *prometheus.CounterVec
}

// NewEventMetrics creates and registers event metrics on the given registry.
func NewEventMetrics(reg prometheus.Registerer) *EventMetrics {
	m := &EventMetrics{
		Appended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "appended_total",
			Help:      "Total number of domain event appends, by sink and result.",
		}, []string{"sink", "result"}),
	}

	reg.MustRegister(m.Appended)
	return m
}
