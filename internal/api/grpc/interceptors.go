package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/content"
	"github.com/flowmesh/dexterity/internal/fti"
	"github.com/flowmesh/dexterity/internal/schema"
	"github.com/flowmesh/dexterity/internal/security"
)

// unaryInterceptorChain creates a chain of unary interceptors
func (s *Server) unaryInterceptorChain() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		// Apply interceptors in order: tracing, metrics, logging, auth, error handling
		h := s.errorInterceptor(handler)
		h = s.authInterceptor(h, info)
		h = s.loggingInterceptor(info, h)
		h = s.metricsInterceptor(info, h)
		h = s.tracingInterceptor(info, h)
		return h(ctx, req)
	}
}

// metricsInterceptor records the method, status code and duration
func (s *Server) metricsInterceptor(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		s.metrics.RecordGRPCRequest(info.FullMethod, status.Code(err).String(), time.Since(start))
		return resp, err
	}
}

// loggingInterceptor logs requests and responses
func (s *Server) loggingInterceptor(info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		start := time.Now()

		log := s.log.With().
			Str("method", info.FullMethod).
			Logger()

		log.Debug().Msg("gRPC request started")

		resp, err := handler(ctx, req)

		log = log.With().Dur("duration", time.Since(start)).Logger()

		if err != nil {
			log.Err(err).Str("code", status.Code(err).String()).Msg("gRPC request failed")
		} else {
			log.Info().Msg("gRPC request completed")
		}

		return resp, err
	}
}

// authInterceptor authenticates requests. Without a token store every
// request acts with full permissions on the site.
func (s *Server) authInterceptor(handler grpc.UnaryHandler, info *grpc.UnaryServerInfo) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		// Skip auth for health check endpoints
		if info != nil && strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		if s.tokenStore == nil {
			return handler(auth.WithAuthContext(ctx, auth.SystemContext(s.site.ID())), req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}

		authHeaders := md.Get("authorization")
		if len(authHeaders) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authentication required")
		}

		token := extractBearerToken(authHeaders[0])
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "invalid authorization header format")
		}

		apiToken, err := s.tokenStore.ValidateToken(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		return handler(auth.WithAuthContext(ctx, auth.NewAuthContext(apiToken)), req)
	}
}

// errorInterceptor handles errors and converts them to gRPC status
func (s *Server) errorInterceptor(handler grpc.UnaryHandler) grpc.UnaryHandler {
	return func(ctx context.Context, req interface{}) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return nil, convertToGRPCStatus(err)
		}
		return resp, nil
	}
}

// extractBearerToken extracts the Bearer token from the authorization header
func extractBearerToken(authHeader string) string {
	const bearerPrefix = "Bearer "
	if len(authHeader) < len(bearerPrefix) {
		return ""
	}
	if authHeader[:len(bearerPrefix)] != bearerPrefix {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// convertToGRPCStatus converts an error to a gRPC status
func convertToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	// Check if it's already a gRPC status
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	var (
		notFound     content.NotFoundError
		typeNotFound fti.NotFoundError
		schemaErr    schema.NotFoundError
		forbidden    security.ForbiddenError
		authForbid   auth.ForbiddenError
		unauthorized auth.UnauthorizedError
		invalidID    content.InvalidIDError
		notContainer content.NotContainerError
		configErr    fti.ConfigurationError
	)

	switch {
	case errors.As(err, &notFound), errors.As(err, &typeNotFound), errors.As(err, &schemaErr):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &unauthorized):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.As(err, &forbidden), errors.As(err, &authForbid):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.As(err, &invalidID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.As(err, &notContainer), errors.As(err, &configErr):
		return status.Error(codes.FailedPrecondition, err.Error())
	}

	// Default to internal error
	return status.Error(codes.Internal, err.Error())
}
