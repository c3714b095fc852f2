// internal/notifications/notifier.go - Rate-limited incident dispatch with retry-until-accepted delivery
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"val-sentry/internal/config"
	"val-sentry/internal/prometheus"
)

type Notifier struct {
	pagerDuty *PagerDutyClient
	mirror    *ShoutrrrNotifier
	metrics   *prometheus.Metrics
	logger    *slog.Logger
	validator string

	cooldown      time.Duration
	retryInterval time.Duration

	now      func() time.Time
	newTimer func() backoff.Timer

	// Muting state
	lastAlert time.Time
}

func New(cfg *config.Config, metrics *prometheus.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{
		pagerDuty:     NewPagerDutyClient(cfg, logger),
		mirror:        NewShoutrrrNotifier(cfg.ShoutrrrURLs, logger),
		metrics:       metrics,
		logger:        logger,
		validator:     cfg.Validator,
		cooldown:      time.Duration(cfg.AlertCooldown) * time.Second,
		retryInterval: time.Duration(cfg.AlertRetryInterval) * time.Second,
		now:           time.Now,
		newTimer:      func() backoff.Timer { return nil },
	}
}

// Dispatch delivers incident unless one was delivered within the cooldown window.
// A rejected delivery is retried at a fixed interval until accepted or ctx ends,
// so the call may block for a long time. It reports whether the incident was accepted.
func (n *Notifier) Dispatch(ctx context.Context, incident Incident) bool {
	if !n.lastAlert.IsZero() && n.now().Sub(n.lastAlert) <= n.cooldown {
		n.logger.Debug("Alert suppressed",
			"summary", incident.Summary,
			"last_alert", n.lastAlert,
			"cooldown", n.cooldown)
		n.metrics.IncidentSuppressed()
		return false
	}

	event := n.pagerDuty.BuildEvent(incident, uuid.NewString())

	attempts := 0
	operation := func() error {
		attempts++
		err := n.pagerDuty.Send(ctx, event)
		if err != nil {
			n.metrics.DeliveryFailed()
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		n.logger.Error("Waiting to resend the alert",
			"retry_in", wait,
			"attempt", attempts,
			"error", err)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(n.retryInterval), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, b, notify, n.newTimer()); err != nil {
		n.logger.Error("Alert abandoned", "summary", incident.Summary, "attempts", attempts, "error", err)
		n.metrics.IncidentAbandoned()
		return false
	}

	n.lastAlert = n.now()
	n.metrics.IncidentDelivered()
	n.logger.Info("Alert sent!",
		"summary", incident.Summary,
		"blocks_missed", incident.BlocksMissed,
		"attempts", attempts,
		"dedup_key", event.DedupKey)

	n.mirror.Send(fmt.Sprintf("🚨 Validator %s: %s (blocks missed: %s)",
		n.validator, incident.Summary, incident.BlocksMissed))

	return true
}

// LastAlert returns when the last incident was accepted, or the zero time.
func (n *Notifier) LastAlert() time.Time {
	return n.lastAlert
}
