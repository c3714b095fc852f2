// internal/types/types.go - Common type definitions
package types

import "time"

// HealthStatus is the outcome of one evaluation cycle.
type HealthStatus string

const (
	StatusHealthy            HealthStatus = "healthy"
	StatusNoEndpoints        HealthStatus = "no_endpoints"
	StatusStale              HealthStatus = "stale"
	StatusOutOfSync          HealthStatus = "out_of_sync"
	StatusSigningInfoMissing HealthStatus = "signing_info_missing"
	StatusThreshold          HealthStatus = "threshold"
)

type CheckResult struct {
	Status       HealthStatus
	Height       int64
	Source       string
	BlocksMissed int64
	Alerted      bool
	CheckedAt    time.Time
}

func (r CheckResult) Healthy() bool {
	return r.Status == StatusHealthy
}

type EndpointStatus struct {
	URL    string
	Height int64
	Error  error
}
