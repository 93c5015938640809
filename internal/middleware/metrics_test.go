package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cassiomorais/notifications/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func newMetricsRouter(m *observability.Metrics) *chi.Mux {
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/api/v1/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/v1/notifications/member-added", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	return r
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	r := newMetricsRouter(m)

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/notifications/"+id, nil))
	}

	assert.Equal(t, 3.0, promtestutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/notifications/{id}", "200")))
	assert.Equal(t, 1, promtestutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetrics_RecordsStatusCode(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	r := newMetricsRouter(m)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/notifications/member-added", nil))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/v1/notifications/member-added", "202")))
}

func TestMetrics_UnmatchedRoute(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	r := newMetricsRouter(m)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
}

func TestMetrics_SkipsScrapes(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	r := newMetricsRouter(m)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, 0, promtestutil.CollectAndCount(m.HTTPRequestsTotal))
}

func TestMetrics_WithoutRouter(t *testing.T) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	handler := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, 1.0, promtestutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "200")))
}

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.WriteHeader(http.StatusCreated)
	sw.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusCreated, sw.statusCode)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestStatusWriter_DefaultStatus(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

	sw.Write([]byte("test"))

	assert.Equal(t, http.StatusOK, sw.statusCode)
}
