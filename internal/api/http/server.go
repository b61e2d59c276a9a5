package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/flowmesh/dexterity/internal/api/http/handlers"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/site"
)

// Server represents an HTTP server
type Server struct {
	site       *site.Site
	httpServer *http.Server
	addr       string
	log        zerolog.Logger
	ready      bool
	mu         sync.RWMutex
	router     *Router
	listener   net.Listener
	certFile   string
	keyFile    string
	events     *handlers.EventHub
	stopEvents context.CancelFunc
}

// NewServer creates a new HTTP server
func NewServer(addr string, s *site.Site, opts RouterOptions) *Server {
	srv := &Server{
		site: s,
		addr: addr,
		log:  logger.WithComponent("http"),
	}

	if opts.Ready == nil {
		opts.Ready = srv.Ready
	}
	if opts.Events == nil {
		opts.Events = handlers.NewEventHub()
		opts.Events.Attach(s)
	}
	srv.events = opts.Events
	srv.router = NewRouter(s, opts)

	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
	}

	return srv
}

// EnableTLS serves HTTPS with the given certificate and key files
func (s *Server) EnableTLS(certFile, keyFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.certFile, s.keyFile = certFile, keyFile
}

// Handler returns the routed handler, for in-process use
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.log.Info().Str("addr", listener.Addr().String()).Msg("Starting HTTP server")

	certFile, keyFile := s.certFile, s.keyFile

	eventsCtx, cancel := context.WithCancel(context.Background())
	s.stopEvents = cancel
	go s.events.Run(eventsCtx)

	// Start server in a goroutine
	go func() {
		var err error
		if certFile != "" {
			err = s.httpServer.ServeTLS(listener, certFile, keyFile)
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	s.ready = true
	s.log.Info().Str("addr", listener.Addr().String()).Msg("HTTP server started")

	return nil
}

// Events returns the event feed hub
func (s *Server) Events() *handlers.EventHub {
	return s.events
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

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return nil
	}

	s.log.Info().Msg("Stopping HTTP server")
	s.stopEvents()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.httpServer.Close()
		return err
	}

	s.ready = false
	s.log.Info().Msg("HTTP server stopped")

	return nil
}

// Ready returns true if the server is ready
func (s *Server) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}
