package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts a server span per request. Once chi has routed the
// request the span is named "METHOD /route/{pattern}" so span names stay
// low-cardinality. otelhttp may re-run the formatter after the handler, so
// the formatter itself prefers the route pattern over the raw path.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		named := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if pattern := routePattern(r); pattern != "" {
				trace.SpanFromContext(r.Context()).SetName(r.Method + " " + pattern)
			}
		})
		return otelhttp.NewHandler(named, "http.request",
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

func spanName(_ string, r *http.Request) string {
	if pattern := routePattern(r); pattern != "" {
		return r.Method + " " + pattern
	}
	return r.Method + " " + r.URL.Path
}

// routePattern is empty until chi has matched a route.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
