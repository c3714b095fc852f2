package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"val-sentry/internal/config"
	"val-sentry/internal/cosmos"
	"val-sentry/internal/monitor"
	"val-sentry/internal/notifications"
	"val-sentry/internal/prometheus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      parseLevel(cfg.LogLevel),
		TimeFormat: time.TimeOnly,
	})
	logger := slog.New(handler)

	metrics := prometheus.New(cfg.EnablePrometheus, time.Duration(cfg.MaxTimeout)*time.Second)
	metrics.Serve(cfg.PrometheusPort, logger)

	client := cosmos.NewClient(time.Duration(cfg.RequestTimeout)*time.Second, logger)
	notifier := notifications.New(&cfg, metrics, logger)
	mon := monitor.New(&cfg, client, notifier, metrics, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Received shutdown signal, finishing current check...")
		cancel()

		<-sigChan
		logger.Warn("Received second shutdown signal, exiting immediately")
		os.Exit(1)
	}()

	mon.Start(ctx)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
