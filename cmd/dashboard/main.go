package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/flood-risk-dashboard/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/flood-risk-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/flood-risk-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-dashboard/internal/config"
	"github.com/couchcryptid/flood-risk-dashboard/internal/dashboard"
	"github.com/couchcryptid/flood-risk-dashboard/internal/domain"
	"github.com/couchcryptid/flood-risk-dashboard/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := backend.NewClient(cfg.BackendURL, backend.Options{
		Timeout:     cfg.BackendTimeout,
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Activity events are feature-flagged via EVENTS_ENABLED / KAFKA_BROKERS.
	var events domain.EventPublisher
	var writer *kafkaadapter.Writer
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		events = writer
		metrics.EventsEnabled.Set(1)
		go writer.Run(ctx)
		logger.Info("activity events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("activity events disabled")
	}

	sessions := httpadapter.NewSessionStore(ctx, cfg.MaxSessions, dashboard.Deps{
		Backend:      client,
		Events:       events,
		Metrics:      metrics,
		Logger:       logger,
		HistoryLimit: cfg.HistoryLimit,
		GuidancePath: cfg.GuidancePath,
	})
	srv := httpadapter.NewServer(cfg.HTTPAddr, sessions, client, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	logger.Info("dashboard started", "backend", cfg.BackendURL, "max_sessions", cfg.MaxSessions)
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
