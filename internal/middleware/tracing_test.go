package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecordingTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTracing_NamesSpanAfterRoutePattern(t *testing.T) {
	recorder := withRecordingTracer(t)

	r := chi.NewRouter()
	r.Use(Tracing())
	r.Get("/api/v1/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/6f1c2c1e", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/notifications/{id}", spans[0].Name())
}

func TestTracing_WithoutRouterKeepsPath(t *testing.T) {
	recorder := withRecordingTracer(t)

	handler := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unrouted", nil))

	assert.Equal(t, "OK", w.Body.String())
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "POST /unrouted", spans[0].Name())
}

func TestTracing_PreservesStatusAndContext(t *testing.T) {
	type key struct{}

	handler := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "v", r.Context().Value(key{}))
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req = req.WithContext(context.WithValue(req.Context(), key{}, "v"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSpanName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/6f1c2c1e", nil)
	assert.Equal(t, "GET /api/v1/notifications/6f1c2c1e", spanName("http.request", req))

	rctx := chi.NewRouteContext()
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	assert.Equal(t, "GET /api/v1/notifications/6f1c2c1e", spanName("http.request", req), "not routed yet")

	rctx.RoutePatterns = []string{"/api/v1/notifications/{id}"}
	assert.Equal(t, "GET /api/v1/notifications/{id}", spanName("http.request", req))
}

func TestTracing_MountedSubrouterUsesFullPattern(t *testing.T) {
	recorder := withRecordingTracer(t)

	api := chi.NewRouter()
	api.Get("/notifications/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r := chi.NewRouter()
	r.Use(Tracing())
	r.Mount("/api/v1", api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/notifications/6f1c2c1e", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/v1/notifications/{id}", spans[0].Name())
}
