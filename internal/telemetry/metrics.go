package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	DrainChunksTotal  *prometheus.CounterVec
	DrainBytesTotal   *prometheus.CounterVec
	DrainErrorTotal   *prometheus.CounterVec
	RateLimitHitTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodygate_request_total",
			Help: "Total number of requests served by applications.",
		}, []string{"app", "status"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bodygate_request_duration_ms",
			Help:    "Request duration in milliseconds, including body draining.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		}, []string{"app"}),

		DrainChunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodygate_drain_chunks_total",
			Help: "Response body chunks written, by body kind.",
		}, []string{"kind"}),

		DrainBytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodygate_drain_bytes_total",
			Help: "Response body bytes written, by body kind.",
		}, []string{"kind"}),

		DrainErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodygate_drain_error_total",
			Help: "Body drains that stopped early, by body kind and reason.",
		}, []string{"kind", "reason"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bodygate_rate_limit_hit_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"dimension"}),
	}
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.App, labels.Status).Inc()
	m.RequestDurationMs.WithLabelValues(labels.App).Observe(labels.DurationMs)
}

// RecordDrain records what a body drain delivered. reason is empty on success.
func (m *Metrics) RecordDrain(kind string, chunks int, bytes int64, reason string) {
	if chunks > 0 {
		m.DrainChunksTotal.WithLabelValues(kind).Add(float64(chunks))
	}
	if bytes > 0 {
		m.DrainBytesTotal.WithLabelValues(kind).Add(float64(bytes))
	}
	if reason != "" {
		m.DrainErrorTotal.WithLabelValues(kind, reason).Inc()
	}
}

// RecordRateLimitHit records a rejected request.
func (m *Metrics) RecordRateLimitHit(dimension string) {
	m.RateLimitHitTotal.WithLabelValues(dimension).Inc()
}

// RequestLabels holds the label values for recording a request.
type RequestLabels struct {
	App        string
	Status     string
	DurationMs float64
}
