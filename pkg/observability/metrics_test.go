package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.AssignmentsReplacedTotal.WithLabelValues("admin").Inc()
	m.CascadeRemovalsTotal.Add(2)
	m.ScopeViolationsTotal.Inc()
	m.TemplateApplicationsTotal.WithLabelValues("partial").Inc()
	m.LoginsTotal.WithLabelValues("success").Inc()
	m.LicenseChecksTotal.WithLabelValues("valid").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AssignmentsReplacedTotal.WithLabelValues("admin")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CascadeRemovalsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ScopeViolationsTotal))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	handler := HTTPMetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/9", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/users/9", "404")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.ScopeViolationsTotal.Inc()

	w := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "buzonshare_scope_violations_total 1")
}
