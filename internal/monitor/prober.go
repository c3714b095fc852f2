// internal/monitor/prober.go - Endpoint failover for height and signing-info queries
package monitor

import (
	"context"
	"errors"
	"log/slog"

	"val-sentry/internal/prometheus"
	"val-sentry/internal/types"
)

// ErrNoEndpoint is returned when every endpoint failed to report a height.
var ErrNoEndpoint = errors.New("no endpoint returned a valid height")

// ChainClient is the data-source capability the prober needs.
type ChainClient interface {
	GetLatestHeight(ctx context.Context, baseURL string) (int64, error)
	GetMissedBlocks(ctx context.Context, baseURL, validator string) (int64, error)
}

type Prober struct {
	client  ChainClient
	metrics *prometheus.Metrics
	logger  *slog.Logger
}

func NewProber(client ChainClient, metrics *prometheus.Metrics, logger *slog.Logger) *Prober {
	return &Prober{
		client:  client,
		metrics: metrics,
		logger:  logger,
	}
}

// ProbeHeight asks each endpoint in order and returns the first valid height
// together with the endpoint that supplied it. Remaining endpoints are not queried.
func (p *Prober) ProbeHeight(ctx context.Context, endpoints []string) (int64, string, error) {
	for _, endpoint := range endpoints {
		height, err := p.client.GetLatestHeight(ctx, endpoint)
		if err == nil && height <= 0 {
			err = errors.New("non-positive height")
		}
		p.metrics.UpdateEndpoint(types.EndpointStatus{URL: endpoint, Height: height, Error: err})

		if err != nil {
			p.logger.Debug("Failed to get height", "endpoint", endpoint, "error", err)
			continue
		}

		p.logger.Debug("Got height", "endpoint", endpoint, "height", height)
		return height, endpoint, nil
	}

	return 0, "", ErrNoEndpoint
}

// FetchMissedBlocks queries only endpoint; there is no failover for signing info.
func (p *Prober) FetchMissedBlocks(ctx context.Context, endpoint, validator string) (int64, error) {
	missed, err := p.client.GetMissedBlocks(ctx, endpoint, validator)
	if err != nil {
		p.logger.Debug("Failed to get the missing blocks", "endpoint", endpoint, "error", err)
		return 0, err
	}

	p.logger.Debug("Got missed blocks", "endpoint", endpoint, "missed", missed)
	return missed, nil
}
