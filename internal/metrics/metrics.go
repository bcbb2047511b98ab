// Package metrics defines Prometheus metrics for the Refinery worker.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds all registered Prometheus collectors.
type Metrics struct {
	ActivityDuration   *prometheus.HistogramVec
	ActivityTotal      *prometheus.CounterVec
	EnhancementsTotal  prometheus.Counter
	GenerationDuration prometheus.Histogram
}

// Register registers all metrics with the given registry.
func Register(reg prometheus.Registerer) error {
	return RegisterWith(reg, New())
}

// RegisterWith registers a pre-built Metrics instance with the given registry.
func RegisterWith(reg prometheus.Registerer, m *Metrics) error {
	collectors := []prometheus.Collector{
		m.ActivityDuration,
		m.ActivityTotal,
		m.EnhancementsTotal,
		m.GenerationDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// New creates uninitialised metric instances (used internally and by interceptor).
func New() *Metrics {
	return &Metrics{
		ActivityDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "refinery_activity_duration_seconds",
				Help:    "Duration of each Temporal activity execution in seconds.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"activity_name", "result"},
		),
		ActivityTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refinery_activity_total",
				Help: "Total number of Temporal activity executions by name and result.",
			},
			[]string{"activity_name", "result"},
		),
		EnhancementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refinery_enhancements_promoted_total",
			Help: "Total number of enhancements promoted to the live artifact.",
		}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refinery_generation_seconds",
			Help:    "Duration of solution generation in seconds.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
	}
}
