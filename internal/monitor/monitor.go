// internal/monitor/monitor.go - Poll loop and lifecycle
package monitor

import (
	"context"
	"log/slog"
	"time"

	"val-sentry/internal/config"
	"val-sentry/internal/prometheus"
)

type Monitor struct {
	config    *config.Config
	evaluator *Evaluator
	logger    *slog.Logger
	interval  time.Duration
}

func New(cfg *config.Config, client ChainClient, alerter Alerter, metrics *prometheus.Metrics, logger *slog.Logger) *Monitor {
	return &Monitor{
		config:    cfg,
		evaluator: NewEvaluator(cfg, client, alerter, metrics, logger),
		logger:    logger,
		interval:  time.Duration(cfg.PollInterval) * time.Second,
	}
}

// Start runs one evaluation cycle per interval until ctx is cancelled. A cycle
// in flight when ctx is cancelled runs to completion, including any pending
// alert delivery; the loop exits at the next cycle boundary.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting validator monitor",
		"validator", m.config.Validator,
		"endpoints", len(m.config.Endpoints),
		"poll_interval", m.interval,
		"max_timeout_seconds", m.config.MaxTimeout,
		"missed_blocks_threshold", m.config.MissedBlocksThreshold)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			m.logger.Info("Closing the program...")
			return
		}

		m.runCycle(context.WithoutCancel(ctx))

		select {
		case <-ctx.Done():
			m.logger.Info("Closing the program...")
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context) {
	start := time.Now()
	result := m.evaluator.Evaluate(ctx)

	m.logger.Debug("Check completed",
		"status", result.Status,
		"height", result.Height,
		"source", result.Source,
		"blocks_missed", result.BlocksMissed,
		"alerted", result.Alerted,
		"duration", time.Since(start))
}
