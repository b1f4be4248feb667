// Package metrics exposes operation counters and latency histograms for
// the cache server over Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds the Prometheus instrumentation registered on the
// control-plane's /metrics endpoint.
type Collector struct {
	Ops      *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
	KeyCount prometheus.GaugeFunc
}

// NewCollector builds and registers a Collector on reg. lenFunc reports the
// current live-entry count for the gauge.
func NewCollector(reg prometheus.Registerer, lenFunc func() int) *Collector {
	c := &Collector{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memcrs",
			Name:      "ops_total",
			Help:      "Count of cache operations by command and outcome.",
		}, []string{"command", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memcrs",
			Name:      "op_latency_seconds",
			Help:      "Per-command handler latency.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 12),
		}, []string{"command"}),
	}
	c.KeyCount = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "memcrs",
		Name:      "keys",
		Help:      "Approximate live key count.",
	}, func() float64 { return float64(lenFunc()) })

	reg.MustRegister(c.Ops, c.Latency, c.KeyCount)
	return c
}

// Observe records one completed operation.
func (c *Collector) Observe(command, outcome string, seconds float64) {
	c.Ops.WithLabelValues(command, outcome).Inc()
	c.Latency.WithLabelValues(command).Observe(seconds)
}
