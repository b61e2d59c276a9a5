package grpc

import (
	"context"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/flowmesh/dexterity/internal/api/auth"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/site"
)

// Options configures the gRPC server
type Options struct {
	// TokenStore authenticates calls; nil disables authentication
	TokenStore auth.TokenStore
	Metrics    *metrics.APIMetrics
	// Credentials secures the transport; nil serves plaintext
	Credentials credentials.TransportCredentials
}

// Server represents a gRPC server
type Server struct {
	site       *site.Site
	grpcServer *grpc.Server
	addr       string
	log        zerolog.Logger
	ready      bool
	mu         sync.RWMutex
	tokenStore auth.TokenStore
	metrics    *metrics.APIMetrics
	listener   net.Listener
	healthSvc  *HealthService
	typesSvc   *TypesService
}

// NewServer creates a new gRPC server
func NewServer(addr string, s *site.Site, opts Options) *Server {
	srv := &Server{
		site:       s,
		addr:       addr,
		log:        logger.WithComponent("grpc"),
		tokenStore: opts.TokenStore,
		metrics:    opts.Metrics,
		healthSvc:  NewHealthService(),
		typesSvc:   NewTypesService(s),
	}

	// Create gRPC server with interceptors
	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(srv.unaryInterceptorChain()),
	}
	if opts.Credentials != nil {
		serverOpts = append(serverOpts, grpc.Creds(opts.Credentials))
	}
	srv.grpcServer = grpc.NewServer(serverOpts...)
	srv.registerServices()

	return srv
}

// Start starts the gRPC server
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve starts serving on an existing listener
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		listener.Close()
		return nil
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("Starting gRPC server")

	// Start server in a goroutine
	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.log.Error().Err(err).Msg("gRPC server error")
		}
	}()

	s.ready = true
	s.healthSvc.SetReady(true)
	s.log.Info().Str("addr", listener.Addr().String()).Msg("gRPC server started")

	return nil
}

// Addr returns the bound address once started, the configured one before
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully stops the gRPC server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping gRPC server")
	s.healthSvc.SetReady(false)

	// Graceful stop with context
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		// Context expired, force stop
		s.grpcServer.Stop()
		return ctx.Err()
	case <-stopped:
		// Graceful stop completed
	}

	s.ready = false
	s.log.Info().Msg("gRPC server stopped")

	return nil
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// registerServices registers all gRPC services
func (s *Server) registerServices() {
	healthpb.RegisterHealthServer(s.grpcServer, s.healthSvc)
	RegisterTypesServer(s.grpcServer, s.typesSvc)
}
