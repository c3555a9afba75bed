package metrics

import "github.com/prometheus/client_golang/prometheus"

// SagaMetrics holds Prometheus metrics for saga execution.
type SagaMetrics struct {
	Outcomes      *prometheus.CounterVec
	Duration      prometheus.Histogram
	StepRetries   prometheus.Counter
	Compensations *prometheus.CounterVec
	Active        prometheus.Gauge
}

// NewSagaMetrics creates and registers saga metrics on the given registry.
func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	m := &SagaMetrics{
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "executions_total",
			Help:      "Total number of saga executions, by outcome (completed, rolled_back).",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of saga executions in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}),
		StepRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "step_retries_total",
			Help:      "Total number of saga step retry attempts.",
		}),
		Compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "compensations_total",
			Help:      "Total number of compensations run, by result.",
		}, []string{"result"}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "saga",
			Name:      "active",
			Help:      "Number of sagas currently executing in this process.",
		}),
	}

	reg.MustRegister(m.Outcomes, m.Duration, m.StepRetries, m.Compensations, m.Active)
	return m
}
