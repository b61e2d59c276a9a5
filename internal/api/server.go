package api

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/credentials"

	"github.com/flowmesh/dexterity/internal/api/auth"
	grpcapi "github.com/flowmesh/dexterity/internal/api/grpc"
	httpapi "github.com/flowmesh/dexterity/internal/api/http"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/site"
)

// Server manages both gRPC and HTTP servers
type Server struct {
	site       *site.Site
	grpcServer *grpcapi.Server
	httpServer *httpapi.Server
	tokenStore auth.TokenStore
	log        zerolog.Logger
	ready      bool
	mu         sync.RWMutex
}

// Config holds configuration for the API server
type Config struct {
	GRPCAddr string
	HTTPAddr string
	// AuthEnabled requires bearer tokens. A development token with every
	// permission is created and logged at startup.
	AuthEnabled bool
	// TLS certificate and key files; both empty serves plaintext
	TLSCertFile string
	TLSKeyFile  string
	Metrics     *metrics.APIMetrics
}

// NewServer creates a new API server over a site
func NewServer(cfg Config, s *site.Site) (*Server, error) {
	srv := &Server{
		site: s,
		log:  logger.WithComponent("api"),
	}

	if cfg.AuthEnabled {
		store := auth.NewInMemoryTokenStore()
		// Create default token for development/testing
		if _, err := store.AddDefaultToken(s.ID()); err != nil {
			srv.log.Warn().Err(err).Msg("Failed to create default token")
		}
		srv.tokenStore = store
	}

	grpcOpts := grpcapi.Options{TokenStore: srv.tokenStore, Metrics: cfg.Metrics}
	if cfg.TLSCertFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		grpcOpts.Credentials = creds
	}

	srv.grpcServer = grpcapi.NewServer(cfg.GRPCAddr, s, grpcOpts)
	srv.httpServer = httpapi.NewServer(cfg.HTTPAddr, s, httpapi.RouterOptions{
		TokenStore: srv.tokenStore,
		Metrics:    cfg.Metrics,
		Ready:      srv.Ready,
	})
	if cfg.TLSCertFile != "" {
		srv.httpServer.EnableTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
	}

	return srv, nil
}

// Start starts both gRPC and HTTP servers
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	s.log.Info().Str("site", s.site.ID()).Msg("Starting API server")

	// Start gRPC server
	if err := s.grpcServer.Start(ctx); err != nil {
		return err
	}

	// Start HTTP server
	if err := s.httpServer.Start(ctx); err != nil {
		// Stop gRPC server if HTTP fails
		s.grpcServer.Stop(ctx)
		return err
	}

	s.ready = true
	s.log.Info().Msg("API server started")

	return nil
}

// Stop gracefully stops both servers. The site stays open; its owner
// closes it.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping API server")

	// Stop HTTP server first
	if err := s.httpServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping HTTP server")
	}

	// Stop gRPC server
	if err := s.grpcServer.Stop(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Error stopping gRPC server")
	}

	s.ready = false
	s.log.Info().Msg("API server stopped")

	return nil
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready && s.grpcServer.Ready() && s.httpServer.Ready()
}

// HTTPAddr returns the bound HTTP address
func (s *Server) HTTPAddr() string {
	return s.httpServer.Addr()
}

// GRPCAddr returns the bound gRPC address
func (s *Server) GRPCAddr() string {
	return s.grpcServer.Addr()
}

// TokenStore returns the token store (for testing/admin purposes). It
// is nil when authentication is disabled.
func (s *Server) TokenStore() auth.TokenStore {
	return s.tokenStore
}
