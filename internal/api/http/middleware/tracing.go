package middleware

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/dexterity/internal/tracing"
)

// Tracing starts a server span per request, continuing any trace carried
// by the request headers. route names the route group in the span.
func Tracing(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := otel.Tracer("dexterity.http").Start(ctx, "HTTP "+r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String(tracing.AttrHTTPMethod, r.Method),
				attribute.String(tracing.AttrHTTPRoute, route),
				attribute.String(tracing.AttrPath, r.URL.Path),
				attribute.String(tracing.AttrHTTPUserAgent, r.UserAgent()),
				attribute.Int64(tracing.AttrHTTPRequestSize, r.ContentLength),
			)

			ww := wrap(w)
			next.ServeHTTP(ww, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int(tracing.AttrHTTPStatusCode, ww.statusCode),
				attribute.Int64(tracing.AttrHTTPResponseSize, ww.written),
			)
			if ww.statusCode >= 400 {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(ww.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
