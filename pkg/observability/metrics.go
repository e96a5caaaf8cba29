package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Identity metrics
	AuthResolutionsTotal    *prometheus.CounterVec
	OAuthLoginsTotal        *prometheus.CounterVec
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec
	UserUpsertsTotal        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homegate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homegate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homegate_auth_resolutions_total",
				Help: "Identity resolutions by the method that produced the principal",
			},
			[]string{"method"},
		),
		OAuthLoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homegate_oauth_logins_total",
				Help: "OAuth callback outcomes per provider",
			},
			[]string{"provider", "status"},
		),
		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homegate_provider_requests_total",
				Help: "Outbound requests to identity providers",
			},
			[]string{"provider", "operation", "status"},
		),
		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "homegate_provider_request_duration_seconds",
				Help:    "Identity provider request duration in seconds",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "operation"},
		),
		UserUpsertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "homegate_user_upserts_total",
				Help: "User directory find-or-create calls",
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthResolutionsTotal,
		m.OAuthLoginsTotal,
		m.ProviderRequestsTotal,
		m.ProviderRequestDuration,
		m.UserUpsertsTotal,
	)

	return m
}

// RecordResolution counts a resolved request; method is "anonymous" when no
// principal was found
func (m *Metrics) RecordResolution(method string) {
	if m == nil {
		return
	}
	m.AuthResolutionsTotal.WithLabelValues(method).Inc()
}

// RecordLogin counts an OAuth callback outcome
func (m *Metrics) RecordLogin(provider, status string) {
	if m == nil {
		return
	}
	m.OAuthLoginsTotal.WithLabelValues(provider, status).Inc()
}

// RecordProviderRequest counts and times one outbound provider call
func (m *Metrics) RecordProviderRequest(provider, operation, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

// RecordUpsert counts a directory find-or-create
func (m *Metrics) RecordUpsert(provider, status string) {
	if m == nil {
		return
	}
	m.UserUpsertsTotal.WithLabelValues(provider, status).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests. Requests are labelled with
// the mux route template so provider names in the path do not add series.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
