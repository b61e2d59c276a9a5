package contentstore

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/dexterity/internal/tracing"
)

// startSpan starts a span for a store operation on path
func startSpan(ctx context.Context, operation, path string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dexterity.contentstore")
	ctx, span := tracer.Start(ctx, "contentstore."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String(tracing.AttrPath, path),
		attribute.String(tracing.AttrOperation, operation),
	)
	return ctx, span
}
