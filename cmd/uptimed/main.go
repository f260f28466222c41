package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"store-uptime-backend/config"
	"store-uptime-backend/internal/api"
	"store-uptime-backend/internal/db"
	"store-uptime-backend/internal/ingest"
	"store-uptime-backend/internal/logging"
	"store-uptime-backend/internal/metrics"
	"store-uptime-backend/internal/report"
	"store-uptime-backend/internal/sink"
	"store-uptime-backend/internal/store"
	"store-uptime-backend/internal/tz"
	"store-uptime-backend/internal/uptime"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "store-uptime")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("database initialized")

	appStore := store.NewGormStore(gormDB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Ingest.OnStartup {
		seeder := ingest.NewSeeder(cfg.Ingest, appStore, ingest.NewDownloader(logger), logger)
		if err := seeder.SeedIfEmpty(ctx); err != nil {
			logger.Error("failed to seed database", zap.Error(err))
		}
	}

	resolver, err := tz.NewResolver(cfg.Schedule.DefaultTimezone, logger)
	if err != nil {
		return err
	}

	artifacts, err := sink.New(ctx, cfg.Sink)
	if err != nil {
		return fmt.Errorf("failed to initialize report sink: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	aggregator := uptime.NewAggregator(appStore, resolver, logger)
	manager := report.NewManager(appStore, aggregator, artifacts, m, cfg.WorkerPool, logger)
	if _, err := manager.WarnStale(ctx); err != nil {
		logger.Warn("failed to check for stale reports", zap.Error(err))
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	manager.Start(workerCtx)

	router := api.NewRouter(cfg.Server, manager, appStore, registry, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("HTTP server ListenAndServe: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", zap.Error(err))
	}

	stopWorkers()
	manager.Wait()
	logger.Info("server gracefully stopped")
	return nil
}
