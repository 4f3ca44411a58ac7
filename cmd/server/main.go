package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scribekit/dictation-service/internal/auth"
	"github.com/scribekit/dictation-service/internal/config"
	"github.com/scribekit/dictation-service/internal/events"
	"github.com/scribekit/dictation-service/internal/metrics"
	"github.com/scribekit/dictation-service/internal/server"
	"github.com/scribekit/dictation-service/internal/session"
	"github.com/scribekit/dictation-service/internal/store"
	"github.com/scribekit/dictation-service/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "dictation-service"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("http_port", cfg.HTTP.Port),
		slog.String("bind_address", cfg.HTTP.Address),
		slog.Int("flush_interval_ms", cfg.Flush.IntervalMs),
		slog.Int("backlog_ceiling", cfg.Flush.BacklogCeiling),
		slog.String("transcription_endpoint", cfg.Transcription.Endpoint),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("events_enabled", cfg.Events.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)
	logger.Info("Prometheus metrics initialized")

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Error("Failed to open session store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("Session store opened", slog.String("path", cfg.Storage.Path))

	sttClient, err := transcription.NewClient(transcription.Config{
		Endpoint:      cfg.Transcription.Endpoint,
		APIKey:        cfg.Transcription.APIKey,
		Model:         cfg.Transcription.Model,
		Timeout:       cfg.Transcription.GetTimeout(),
		MaxRetries:    cfg.Transcription.MaxRetries,
		MaxConcurrent: cfg.Transcription.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	publisher := events.New(events.Config{
		Brokers: cfg.Events.Brokers,
		Topic:   cfg.Events.Topic,
		Enabled: cfg.Events.Enabled,
	}, logger)
	defer publisher.Close()

	coordinator := session.New(cfg.Flush, db, sttClient, publisher, appMetrics, logger)
	coordinator.StartSweeper()
	logger.Info("Session coordinator initialized",
		slog.Duration("idle_timeout", cfg.Flush.GetIdleTimeout()),
	)

	authn := buildAuthenticator(cfg.Auth)

	httpServer := server.NewHTTPServer(cfg.HTTP, logger, coordinator, authn,
		appMetrics, registry, sttClient)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	coordinator.Close()

	stats := sttClient.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// buildAuthenticator maps configured static API keys to user identities.
func buildAuthenticator(cfg config.AuthConfig) auth.Authenticator {
	keys := make(map[string]auth.User, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys[k.Token] = auth.User{ID: k.ID, Name: k.Name, Email: k.Email}
	}
	return auth.NewStaticKeys(keys)
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
