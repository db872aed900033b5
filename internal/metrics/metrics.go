// Package metrics exposes Prometheus collectors for the HTTP layer and the
// session subsystem. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/you/projectsvc/domain"
)

const namespace = "projectsvc"

// Metrics holds the collectors registered on its own registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	sessionsCreated *prometheus.CounterVec
	sessionsRemoved *prometheus.CounterVec
}

// New creates a registry with Go runtime and process collectors plus the
// service collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		sessionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_sessions_total",
			Help:      "Session side effect of successful logins by outcome.",
		}, []string{"outcome"}),
		sessionsRemoved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_removed_total",
			Help:      "Sessions removed by reason.",
		}, []string{"reason"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// LoginSucceeded records a successful login and its session outcome
func (m *Metrics) LoginSucceeded(outcome domain.SessionStatus) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues("success").Inc()
	m.sessionsCreated.WithLabelValues(string(outcome)).Inc()
}

// LoginFailed records a rejected login
func (m *Metrics) LoginFailed() {
	if m == nil {
		return
	}
	m.logins.WithLabelValues("failure").Inc()
}

// SessionsRemoved records n removed sessions. reason is "logout", "terminate"
// or "expired".
func (m *Metrics) SessionsRemoved(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsRemoved.WithLabelValues(reason).Add(float64(n))
}
