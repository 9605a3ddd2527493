// Package observability exposes Prometheus metrics for the HTTP surface and
// the authentication flows.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names referenced by alert rules.
const (
	MetricHTTPRequests     = "rbac_http_requests_total"
	MetricHTTPDuration     = "rbac_http_request_duration_seconds"
	MetricAuthAttempts     = "rbac_auth_attempts_total"
	MetricTokenRejections  = "rbac_token_rejections_total"
	MetricPermissionChecks = "rbac_permission_checks_total"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	authAttempts     *prometheus.CounterVec
	tokenRejections  *prometheus.CounterVec
	permissionChecks *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP, auth and runtime collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricHTTPRequests,
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    MetricHTTPDuration,
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricAuthAttempts,
		Help: "Signup, login and refresh attempts by outcome.",
	}, []string{"flow", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricTokenRejections,
		Help: "Bearer or refresh tokens rejected, by failure kind.",
	}, []string{"reason"})
	checks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MetricPermissionChecks,
		Help: "Route capability checks by result.",
	}, []string{"resource", "action", "result"})
	registry.MustRegister(
		requests, duration, attempts, rejections, checks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		authAttempts:     attempts,
		tokenRejections:  rejections,
		permissionChecks: checks,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// AuthAttempt counts one signup, login or refresh outcome.
func (m *Metrics) AuthAttempt(flow, outcome string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(flow, outcome).Inc()
}

// TokenRejected counts one rejected token.
func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokenRejections.WithLabelValues(reason).Inc()
}

// PermissionChecked counts one capability decision.
func (m *Metrics) PermissionChecked(resource, action string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.permissionChecks.WithLabelValues(resource, action, result).Inc()
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
