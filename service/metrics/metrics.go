package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Upstream wallet-service API metrics
	upstreamCallsTotal   *prometheus.CounterVec
	upstreamCallDuration *prometheus.HistogramVec

	// Payload lifecycle metrics
	payloadsCreatedTotal *prometheus.CounterVec

	// Signature verification metrics
	verificationsTotal *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
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
				Name: "xumm_api_calls_total",
				Help: "Total number of Xaman platform API calls by method and status",
			},
			[]string{"method", "status"},
		),
		upstreamCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xumm_api_call_duration_seconds",
				Help:    "Duration of Xaman platform API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		payloadsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signing_payloads_created_total",
				Help: "Total number of signing payloads created by transaction type",
			},
			[]string{"tx_type"},
		),
		verificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signature_verifications_total",
				Help: "Total number of signed-transaction verifications by result",
			},
			[]string{"result"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"handler", "method"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by handler, method and status code",
			},
			[]string{"handler", "method", "status"},
		),
	}
}

// RecordUpstreamCall records a Xaman platform API call.
func (m *Metrics) RecordUpstreamCall(method, status string, duration float64) {
	m.upstreamCallsTotal.WithLabelValues(method, status).Inc()
	m.upstreamCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordPayloadCreated records a created signing payload.
func (m *Metrics) RecordPayloadCreated(txType string) {
	m.payloadsCreatedTotal.WithLabelValues(txType).Inc()
}

// RecordVerification records a signature verification outcome
// ("valid" or "invalid").
func (m *Metrics) RecordVerification(result string) {
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusClass(statusCode)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(handler, method).Observe(duration)
}

// statusClass buckets a status code into its class ("2xx", "4xx", ...).
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
