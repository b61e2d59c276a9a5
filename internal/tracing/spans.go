package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartContentSpan starts a span for an operation on a content object
func StartContentSpan(ctx context.Context, component, operation, portalType, path string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dexterity." + component)
	ctx, span := tracer.Start(ctx, component+"."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String(AttrPortalType, portalType),
		attribute.String(AttrPath, path),
		attribute.String(AttrOperation, operation),
	)
	return ctx, span
}

// StartTypeSpan starts a span for a type lifecycle operation
func StartTypeSpan(ctx context.Context, operation, portalType string) (context.Context, trace.Span) {
	tracer := otel.Tracer("dexterity.fti")
	ctx, span := tracer.Start(ctx, "fti."+operation)
	span.SetAttributes(
		attribute.String(AttrPortalType, portalType),
		attribute.String(AttrOperation, operation),
	)
	return ctx, span
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(AttrStatus, "error"))
	} else {
		span.SetAttributes(attribute.String(AttrStatus, "ok"))
	}
	span.End()
}
