package commit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics implements MetricsRecorder on top of
// github.com/prometheus/client_golang, grounded on the pack's own use of
// it for service instrumentation. Stage latencies go into a
// prometheus.HistogramVec, which keeps a running sum, a count and
// bucketed counts per stage, internally synchronised; it does not keep
// a min, a max or the raw recent samples.
type PrometheusMetrics struct {
	stageLatency *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	outboxDepth  prometheus.Gauge
}

// NewPrometheusMetrics registers the commit stage's metrics against reg.
// Pass prometheus.NewRegistry() for tests, or the default registry in
// production so /metrics exposes them.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		stageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pricing_engine",
			Name:      "stage_latency_ms",
			Help:      "Latency of each pipeline stage in milliseconds.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}, []string{"stage"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pricing_engine",
			Name:      "stage_errors_total",
			Help:      "Errors encountered per pipeline stage, by error kind.",
		}, []string{"stage", "kind"}),
		outboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricing_engine",
			Name:      "outbox_depth",
			Help:      "Number of outbox events claimed in the most recent publisher tick.",
		}),
	}
}

func (m *PrometheusMetrics) ObserveStageLatency(stage string, durationMs int64) {
	m.stageLatency.WithLabelValues(stage).Observe(float64(durationMs))
}

func (m *PrometheusMetrics) IncError(stage string, kind string) {
	m.errors.WithLabelValues(stage, kind).Inc()
}

func (m *PrometheusMetrics) SetOutboxDepth(depth float64) {
	m.outboxDepth.Set(depth)
}
