// Command dexterityd serves a content site over HTTP, WebDAV and gRPC.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowmesh/dexterity/internal/api"
	"github.com/flowmesh/dexterity/internal/config"
	"github.com/flowmesh/dexterity/internal/logger"
	"github.com/flowmesh/dexterity/internal/metrics"
	"github.com/flowmesh/dexterity/internal/site"
	"github.com/flowmesh/dexterity/internal/storage"
	"github.com/flowmesh/dexterity/internal/tracing"
	"github.com/flowmesh/dexterity/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dexterityd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.WithComponent("main")
	log.Info().Str("version", version.String()).Msg("Starting dexterityd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingCfg := tracing.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Metrics.TracingEnabled
	tracingCfg.Endpoint = cfg.Metrics.TracingEndpoint
	tracingCfg.ExporterType = cfg.Metrics.TracingExporter
	tracingCfg.ServiceVersion = version.Get().Version
	tracer, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	var (
		set           *metrics.Set
		metricsServer *metrics.Server
	)
	if cfg.Metrics.Enabled {
		collector := metrics.NewProcessCollector()
		set = metrics.NewSet(collector)
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, collector.GetRegistry())
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	store, err := storage.NewBuilder().
		WithDataDir(cfg.Storage.DataDir).
		WithSyncWrites(cfg.Storage.SyncWrites).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build storage: %w", err)
	}

	opts := site.FromConfig(cfg)
	opts.Metrics = set
	s, err := site.New(ctx, store, opts)
	if err != nil {
		_ = store.Close(context.Background())
		return fmt.Errorf("failed to open site: %w", err)
	}

	apiCfg := api.Config{
		GRPCAddr:    cfg.Server.GRPCAddr,
		HTTPAddr:    cfg.Server.HTTPAddr,
		AuthEnabled: cfg.Server.AuthEnabled,
	}
	if cfg.Server.TLSEnabled {
		apiCfg.TLSCertFile = cfg.Server.TLSCertFile
		apiCfg.TLSKeyFile = cfg.Server.TLSKeyFile
	}
	if set != nil {
		apiCfg.Metrics = set.API
	}
	server, err := api.NewServer(apiCfg, s)
	if err != nil {
		_ = s.Close(context.Background())
		return err
	}
	if err := server.Start(ctx); err != nil {
		_ = s.Close(context.Background())
		return fmt.Errorf("failed to start API server: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Error stopping API server")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Error stopping metrics server")
		}
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Error shutting down tracing")
	}
	if err := s.Close(shutdownCtx); err != nil {
		return fmt.Errorf("failed to close site: %w", err)
	}

	log.Info().Msg("Stopped")
	return nil
}
