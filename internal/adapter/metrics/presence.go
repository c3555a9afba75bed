package metrics

import "github.com/prometheus/client_golang/prometheus"

// PresenceMetrics holds Prometheus metrics for collaboration presence.
type PresenceMetrics struct {
	Writes        *prometheus.CounterVec
	LockAttempts  *prometheus.CounterVec
	ConflictHints prometheus.Counter
	Swept         prometheus.Counter
}

// NewPresenceMetrics creates and registers presence metrics on the given registry.
func NewPresenceMetrics(reg prometheus.Registerer) *PresenceMetrics {
	m := &PresenceMetrics{
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "writes_total",
			Help:      "Total number of presence heartbeats, by result (stored, dropped, error).",
		}, []string{"result"}),
		LockAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "lock_attempts_total",
			Help:      "Total number of advisory lock attempts, by result.",
		}, []string{"result"}),
		ConflictHints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "conflict_hints_total",
			Help:      "Total number of concurrent-editor hints returned by conflict detection.",
		}),
		Swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "presence",
			Name:      "swept_total",
			Help:      "Total number of stale presence entries removed by the background sweep.",
		}),
	}

	reg.MustRegister(m.Writes, m.LockAttempts, m.ConflictHints, m.Swept)
	return m
}
