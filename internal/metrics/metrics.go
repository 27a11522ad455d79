package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Validation outcomes recorded by RecordValidation.
const (
	ResultValid          = "valid"
	ResultBadRequest     = "bad_request"
	ResultMalformed      = "malformed"
	ResultUnknownKey     = "unknown_key"
	ResultSecretMismatch = "secret_mismatch"
	ResultError          = "error"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	ValidationsTotal          *prometheus.CounterVec
	CredentialOperationsTotal *prometheus.CounterVec
	LoginsTotal               *prometheus.CounterVec
	RateLimitBlocksTotal      *prometheus.CounterVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vince_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vince_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vince_validations_total",
				Help: "API key validations by outcome",
			},
			[]string{"result"},
		),

		CredentialOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vince_credential_operations_total",
				Help: "Credential lifecycle operations by kind",
			},
			[]string{"operation"},
		),

		LoginsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vince_logins_total",
				Help: "Admin login attempts by outcome",
			},
			[]string{"result"},
		),

		RateLimitBlocksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vince_rate_limit_blocks_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordValidation(result string) {
	m.ValidationsTotal.WithLabelValues(result).Inc()
}

// RecordCredentialOperation counts create, rotate and revoke operations, e.g.
// "api_key_create" or "service_key_rotate".
func (m *Metrics) RecordCredentialOperation(operation string) {
	m.CredentialOperationsTotal.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordRateLimitBlock(limiter string) {
	m.RateLimitBlocksTotal.WithLabelValues(limiter).Inc()
}
