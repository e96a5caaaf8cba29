package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordResolution("oauth")
	m.RecordResolution("oauth")
	m.RecordLogin("github", "success")
	m.RecordProviderRequest("github", "userinfo", "200", 15*time.Millisecond)
	m.RecordUpsert("github", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthResolutionsTotal.WithLabelValues("oauth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OAuthLoginsTotal.WithLabelValues("github", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("github", "userinfo", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UserUpsertsTotal.WithLabelValues("github", "success")))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordResolution("anonymous")
		m.RecordLogin("google", "failure")
		m.RecordProviderRequest("google", "token", "error", time.Second)
		m.RecordUpsert("google", "error")
	})
}

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/auth/login/{provider}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, p := range []string{"github", "google"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login/"+p, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/auth/login/{provider}", "418")))
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordResolution("header")

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `homegate_auth_resolutions_total{method="header"} 1`))
}
