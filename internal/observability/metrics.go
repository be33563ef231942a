package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/field-service/internal/domain"
)

// Metrics holds the prometheus collectors for the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	authOutcomes  *prometheus.CounterVec
	mutations     *prometheus.CounterVec
	requestStatus *prometheus.GaugeVec
}

// NewMetrics registers every collector on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "field_service_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "field_service_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "field_service_http_errors_total",
			Help: "Error responses by route, method and error code.",
		}, []string{"route", "method", "code"}),
		authOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "field_service_auth_attempts_total",
			Help: "Signup and login attempts by outcome.",
		}, []string{"action", "outcome"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "field_service_service_request_mutations_total",
			Help: "Service request writes by kind.",
		}, []string{"kind"}),
		requestStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "field_service_service_requests",
			Help: "Stored service requests by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.errors,
		m.authOutcomes,
		m.mutations,
		m.requestStatus,
	)
	return m
}

// Auth outcomes.
const (
	AuthSuccess = "success"
	AuthFailure = "failure"
	AuthLocked  = "locked"
)

// Mutation kinds.
const (
	MutationCreated          = "created"
	MutationUpdated          = "updated"
	MutationStatusChanged    = "status_changed"
	MutationEvidenceAttached = "evidence_attached"
)

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordAuth counts a signup or login attempt.
func (m *Metrics) RecordAuth(action, outcome string) {
	if m == nil {
		return
	}
	m.authOutcomes.WithLabelValues(action, outcome).Inc()
}

// RecordMutation counts a service request write.
func (m *Metrics) RecordMutation(kind string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(kind).Inc()
}

// SetStatusCounts replaces the per-status gauge. Statuses missing from
// counts are reported as zero.
func (m *Metrics) SetStatusCounts(counts map[domain.ServiceRequestStatus]int64) {
	if m == nil {
		return
	}
	for _, status := range domain.Statuses {
		m.requestStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
