package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the bridge.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Outbound HTTP metrics (mirror node and primary API)
	upstreamCallsTotal    *prometheus.CounterVec
	upstreamCallDuration  *prometheus.HistogramVec
	upstreamRateLimitHits *prometheus.CounterVec
	upstreamRetries       *prometheus.CounterVec

	// Mirror aggregation metrics
	mirrorFanoutSize       *prometheus.HistogramVec
	mirrorSubqueryFailures *prometheus.CounterVec
	mirrorSoftFailures     *prometheus.CounterVec

	// Contract call pipeline metrics
	contractCallStages   *prometheus.CounterVec
	contractCallDuration *prometheus.HistogramVec

	// Bridge metrics
	bridgeResponsesTotal *prometheus.CounterVec

	// Inbound HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		upstreamCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_calls_total",
				Help: "Total number of outbound HTTP attempts by service, method and status class",
			},
			[]string{"service", "method", "status"},
		),
		upstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upstream_call_duration_seconds",
				Help:    "Duration of outbound HTTP attempts in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"service", "method"},
		),
		upstreamRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_rate_limit_hits_total",
				Help: "Total number of upstream rate limit responses (429)",
			},
			[]string{"service"},
		),
		upstreamRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_retries_total",
				Help: "Total number of scheduled upstream retries",
			},
			[]string{"service", "reason"},
		),

		mirrorFanoutSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mirror_fanout_size",
				Help:    "Number of transaction detail queries issued per page",
				Buckets: []float64{1, 5, 10, 25, 50, 100},
			},
			[]string{"network"},
		),
		mirrorSubqueryFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_subquery_failures_total",
				Help: "Total number of transaction detail queries degraded to an empty result",
			},
			[]string{"network"},
		),
		mirrorSoftFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mirror_soft_failures_total",
				Help: "Total number of optional lookups degraded to an empty result",
			},
			[]string{"lookup"},
		),

		contractCallStages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contract_call_stages_total",
				Help: "Total number of contract call pipeline stage transitions",
			},
			[]string{"stage", "status"},
		),
		contractCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contract_call_duration_seconds",
				Help:    "Duration of the full contract call pipeline in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		bridgeResponsesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bridge_responses_total",
				Help: "Total number of responses emitted to the host",
			},
			[]string{"method", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Upstream metric helpers

// RecordUpstreamCall records one outbound HTTP attempt with its duration.
// statusCode 0 means the request never produced a response.
func (m *Metrics) RecordUpstreamCall(service, method string, statusCode int, duration float64) {
	m.upstreamCallsTotal.WithLabelValues(service, method, statusCodeToString(statusCode)).Inc()
	m.upstreamCallDuration.WithLabelValues(service, method).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(service string) {
	m.upstreamRateLimitHits.WithLabelValues(service).Inc()
}

// RecordRetry records a scheduled retry.
func (m *Metrics) RecordRetry(service, reason string) {
	m.upstreamRetries.WithLabelValues(service, reason).Inc()
}

// Mirror metric helpers

// RecordFanout records how many detail queries one page issued.
func (m *Metrics) RecordFanout(network string, size int) {
	m.mirrorFanoutSize.WithLabelValues(network).Observe(float64(size))
}

// RecordSubqueryFailure records a detail query degraded to an empty result.
func (m *Metrics) RecordSubqueryFailure(network string) {
	m.mirrorSubqueryFailures.WithLabelValues(network).Inc()
}

// RecordSoftFailure records an optional lookup degraded to an empty result.
func (m *Metrics) RecordSoftFailure(lookup string) {
	m.mirrorSoftFailures.WithLabelValues(lookup).Inc()
}

// Contract call metric helpers

// RecordCallStage records a pipeline stage outcome.
func (m *Metrics) RecordCallStage(stage string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.contractCallStages.WithLabelValues(stage, status).Inc()
}

// RecordCallDuration records the duration of a whole contract call.
func (m *Metrics) RecordCallDuration(status string, duration float64) {
	m.contractCallDuration.WithLabelValues(status).Observe(duration)
}

// Bridge metric helpers

// RecordResponse records a response emitted to the host.
func (m *Metrics) RecordResponse(method, status string) {
	m.bridgeResponsesTotal.WithLabelValues(method, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
