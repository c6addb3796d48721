package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Permission engine metrics
	AssignmentsReplacedTotal  *prometheus.CounterVec
	CascadeRemovalsTotal      prometheus.Counter
	ScopeViolationsTotal      prometheus.Counter
	TemplateApplicationsTotal *prometheus.CounterVec

	// Session metrics
	SessionsActive prometheus.Gauge
	LoginsTotal    *prometheus.CounterVec

	// License metrics
	LicenseChecksTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzonshare_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buzonshare_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AssignmentsReplacedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzonshare_assignments_replaced_total",
				Help: "Total number of email assignment replacements",
			},
			[]string{"actor_role"},
		),
		CascadeRemovalsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buzonshare_cascade_removals_total",
				Help: "Total number of assignment rows removed by admin-scope cascades",
			},
		),
		ScopeViolationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "buzonshare_scope_violations_total",
				Help: "Total number of assignment requests rejected for exceeding the delegated scope",
			},
		),
		TemplateApplicationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzonshare_template_applications_total",
				Help: "Total number of template applications",
			},
			[]string{"outcome"},
		),

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buzonshare_sessions_active",
				Help: "Number of active sessions",
			},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzonshare_logins_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),

		LicenseChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzonshare_license_checks_total",
				Help: "Total number of license validations",
			},
			[]string{"status"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buzonshare_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "buzonshare_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AssignmentsReplacedTotal,
		m.CascadeRemovalsTotal,
		m.ScopeViolationsTotal,
		m.TemplateApplicationsTotal,
		m.SessionsActive,
		m.LoginsTotal,
		m.LicenseChecksTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// MetricsHandler returns the /metrics handler for the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
