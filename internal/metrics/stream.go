package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics tracks the publication loop and trade intake.
type StreamMetrics struct {
	TicksPublished   *prometheus.CounterVec
	GenerationFaults *prometheus.CounterVec
	SinkErrors       *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	TradesExecuted   *prometheus.CounterVec
}

// NewStreamMetrics creates and registers loop metrics on the given registry.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		TicksPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ticks_published_total",
			Help:      "Total number of ticks published, by symbol.",
		}, []string{"symbol"}),
		GenerationFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "generation_faults_total",
			Help:      "Total number of skipped ticks due to generation faults, by symbol.",
		}, []string{"symbol"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sink_errors_total",
			Help:      "Total number of failed side publications, by sink.",
		}, []string{"sink"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one publication cycle in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "executions_total",
			Help:      "Total number of synthetic fills, by side.",
		}, []string{"side"}),
	}

	reg.MustRegister(m.TicksPublished, m.GenerationFaults, m.SinkErrors, m.CycleDuration, m.TradesExecuted)
	return m
}
