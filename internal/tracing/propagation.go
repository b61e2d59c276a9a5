package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// InjectToHeaders writes the trace context of ctx into headers. Only the
// first value of each propagator field is kept.
func InjectToHeaders(ctx context.Context, headers map[string]string) {
	if headers == nil {
		return
	}

	carrier := make(propagation.HeaderCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	for k, v := range carrier {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
}

// StartEventSpan starts a span for the dispatch of an event to its
// subscribers
func StartEventSpan(ctx context.Context, kind string, handlers int) (context.Context, trace.Span) {
	tracer := otel.Tracer("dexterity.events")
	ctx, span := tracer.Start(ctx, "event."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String(AttrEvent, kind),
		attribute.Int("dexterity.event.handlers", handlers),
	)
	return ctx, span
}
