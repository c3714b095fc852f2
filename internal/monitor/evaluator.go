// internal/monitor/evaluator.go - Validator health evaluation
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"val-sentry/internal/config"
	"val-sentry/internal/notifications"
	"val-sentry/internal/prometheus"
	"val-sentry/internal/types"
)

const allEndpointsInvalid = "All endpoints are invalid"

// Alerter delivers incidents and reports whether one was accepted.
type Alerter interface {
	Dispatch(ctx context.Context, incident notifications.Incident) bool
}

// State is what the evaluator remembers between cycles.
type State struct {
	// CurrentBlock is the height watermark; zero until the first reading.
	CurrentBlock int64
	BlocksMissed int64
	HasMissed    bool
	// LastUpdate is when both height and missed blocks were last obtained.
	LastUpdate time.Time
}

type Evaluator struct {
	prober  *Prober
	alerter Alerter
	metrics *prometheus.Metrics
	logger  *slog.Logger

	endpoints  []string
	validator  string
	maxTimeout time.Duration
	threshold  int64

	now   func() time.Time
	state State
}

func NewEvaluator(cfg *config.Config, client ChainClient, alerter Alerter, metrics *prometheus.Metrics, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		prober:     NewProber(client, metrics, logger),
		alerter:    alerter,
		metrics:    metrics,
		logger:     logger,
		endpoints:  cfg.Endpoints,
		validator:  cfg.Validator,
		maxTimeout: time.Duration(cfg.MaxTimeout) * time.Second,
		threshold:  cfg.MissedBlocksThreshold,
		now:        time.Now,
	}
}

func (e *Evaluator) State() State {
	return e.state
}

// Evaluate runs one cycle: probe height, fetch missed blocks from the endpoint
// that answered, and raise an incident when the validator or its data sources
// look unhealthy.
func (e *Evaluator) Evaluate(ctx context.Context) types.CheckResult {
	result := e.evaluate(ctx)
	result.CheckedAt = e.now()
	e.metrics.UpdateCheck(result)
	return result
}

func (e *Evaluator) evaluate(ctx context.Context) types.CheckResult {
	height, source, err := e.prober.ProbeHeight(ctx, e.endpoints)
	if err != nil {
		return e.handleNoEndpoint(ctx)
	}

	if e.state.CurrentBlock != 0 && height < e.state.CurrentBlock {
		e.logger.Debug("The height is lower than our last stored height (endpoints are not in sync)",
			"endpoint", source,
			"height", height,
			"current_block", e.state.CurrentBlock)
		return types.CheckResult{Status: types.StatusOutOfSync, Height: height, Source: source}
	}
	e.state.CurrentBlock = height
	e.metrics.UpdateHeight(height)

	missed, err := e.prober.FetchMissedBlocks(ctx, source, e.validator)
	if err != nil {
		// Not escalated here; a sustained failure surfaces through the staleness check.
		return types.CheckResult{Status: types.StatusSigningInfoMissing, Height: height, Source: source}
	}

	now := e.now()
	e.state.LastUpdate = now
	e.state.BlocksMissed = missed
	e.state.HasMissed = true
	e.metrics.UpdateReading(missed, now)

	result := types.CheckResult{Height: height, Source: source, BlocksMissed: missed}
	if missed > e.threshold {
		e.logger.Info("Sending alert: Missing blocks", "blocks_missed", missed, "threshold", e.threshold)
		result.Status = types.StatusThreshold
		result.Alerted = e.alerter.Dispatch(ctx, notifications.MissedBlocksIncident(missed))
		return result
	}

	result.Status = types.StatusHealthy
	return result
}

func (e *Evaluator) handleNoEndpoint(ctx context.Context) types.CheckResult {
	result := types.CheckResult{Status: types.StatusNoEndpoints}

	if e.state.LastUpdate.IsZero() {
		e.logger.Info("Sending alert: All endpoints are invalid", "endpoints", len(e.endpoints))
		result.Alerted = e.alerter.Dispatch(ctx, notifications.TextIncident(allEndpointsInvalid))
		return result
	}

	if elapsed := e.now().Sub(e.state.LastUpdate); elapsed > e.maxTimeout {
		e.logger.Info("Sending alert: No valid response", "since_last_update", elapsed)
		result.Status = types.StatusStale
		text := fmt.Sprintf("No valid response after %d seconds", int(e.maxTimeout.Seconds()))
		result.Alerted = e.alerter.Dispatch(ctx, notifications.TextIncident(text))
		return result
	}

	e.logger.Debug("No endpoint answered, within staleness tolerance",
		"since_last_update", e.now().Sub(e.state.LastUpdate))
	return result
}
