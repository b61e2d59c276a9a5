package grpc

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/flowmesh/dexterity/internal/tracing"
)

// tracingInterceptor wraps handler in a server span continuing the trace
// carried by the incoming metadata
func (s *Server) tracingInterceptor(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	service, method := splitMethodName(info.FullMethod)

	return func(ctx context.Context, req interface{}) (interface{}, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			md = metadata.New(nil)
		}
		ctx = otel.GetTextMapPropagator().Extract(ctx, metadataCarrier(md))

		ctx, span := otel.Tracer("dexterity.grpc").Start(ctx, info.FullMethod,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String(tracing.AttrRPCService, service),
			attribute.String(tracing.AttrRPCMethod, method),
			attribute.String(tracing.AttrSite, s.site.ID()),
		)

		resp, err := handler(ctx, req)

		code := status.Code(err)
		span.SetAttributes(attribute.String(tracing.AttrRPCStatus, code.String()))
		if err != nil {
			span.SetStatus(codes.Error, status.Convert(err).Message())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return resp, err
	}
}

// splitMethodName splits "/package.Service/Method" into its service and
// method. Names without a service come back whole as the method.
func splitMethodName(fullMethod string) (string, string) {
	name := strings.TrimPrefix(fullMethod, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// metadataCarrier adapts gRPC metadata to propagation.TextMapCarrier
type metadataCarrier metadata.MD

func (m metadataCarrier) Get(key string) string {
	vals := metadata.MD(m).Get(key)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func (m metadataCarrier) Set(key, value string) {
	metadata.MD(m).Set(key, value)
}

func (m metadataCarrier) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
