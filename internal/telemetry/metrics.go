package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the mentor gateway.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	RejectedTotal     *prometheus.CounterVec
	StreamFrames      prometheus.Counter
	TokenRefreshTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all gateway metrics on the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_gateway_request_total",
			Help: "Chat requests processed, by endpoint and status.",
		}, []string{"endpoint", "status"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentor_gateway_request_duration_ms",
			Help:    "Request duration in milliseconds, including provider latency.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"endpoint"}),

		RejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_gateway_rejected_total",
			Help: "Requests rejected before reaching the provider, by stage and reason.",
		}, []string{"stage", "reason"}),

		StreamFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mentor_gateway_stream_frames_total",
			Help: "Normalized SSE frames delivered to clients.",
		}),

		TokenRefreshTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mentor_gateway_token_refresh_total",
			Help: "Provider credential refreshes, by outcome.",
		}, []string{"outcome"}),
	}
}

// RecordRequest records a completed request.
func (m *Metrics) RecordRequest(endpoint, status string, durationMs float64) {
	m.RequestTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDurationMs.WithLabelValues(endpoint).Observe(durationMs)
}

// RecordRejection records a short-circuited request.
func (m *Metrics) RecordRejection(stage, reason string) {
	m.RejectedTotal.WithLabelValues(stage, reason).Inc()
}
