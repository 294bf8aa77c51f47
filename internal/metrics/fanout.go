package metrics

import "github.com/prometheus/client_golang/prometheus"

// FanoutMetrics tracks subscribers and broadcast delivery.
type FanoutMetrics struct {
	ActiveSubscribers prometheus.Gauge
	Deliveries        *prometheus.CounterVec
	Evictions         prometheus.Counter
	BroadcastDuration prometheus.Histogram
}

// NewFanoutMetrics creates and registers fan-out metrics on the given registry.
func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	m := &FanoutMetrics{
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "active_subscribers",
			Help:      "Number of registered subscriber handles.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "deliveries_total",
			Help:      "Total number of per-subscriber delivery attempts, by result.",
		}, []string{"result"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "evictions_total",
			Help:      "Total number of subscribers evicted after a failed delivery.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "broadcast_duration_seconds",
			Help:      "Duration of one broadcast pass in seconds.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
	}

	reg.MustRegister(m.ActiveSubscribers, m.Deliveries, m.Evictions, m.BroadcastDuration)
	return m
}
