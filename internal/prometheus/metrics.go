// internal/prometheus/metrics.go - Prometheus metrics and health endpoints
package prometheus

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"val-sentry/internal/types"
)

const maxGoroutines = 100

type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	currentHeight  prometheus.Gauge
	blocksMissed   prometheus.Gauge
	healthy        prometheus.Gauge
	lastUpdate     prometheus.Gauge
	checksTotal    *prometheus.CounterVec
	endpointProbes *prometheus.CounterVec
	incidentsTotal *prometheus.CounterVec
	deliveryFails  prometheus.Counter

	// unix nanoseconds of the last combined reading, read by the HTTP server goroutine
	lastUpdateNanos atomic.Int64
	maxStaleness    time.Duration
}

// New builds the metric set. The set is always recorded; enabled only decides
// whether Serve exposes it.
func New(enabled bool, maxStaleness time.Duration) *Metrics {
	m := &Metrics{
		enabled:      enabled,
		registry:     prometheus.NewRegistry(),
		maxStaleness: maxStaleness,
		currentHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "validator_chain_height",
			Help: "Highest chain height observed across all endpoints",
		}),
		blocksMissed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "validator_missed_blocks",
			Help: "Last observed missed-block counter of the validator",
		}),
		healthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "validator_healthy",
			Help: "Result of the last evaluation cycle (1=healthy, 0=unhealthy)",
		}),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "validator_last_update_timestamp_seconds",
			Help: "Unix time of the last successful height and missed-blocks reading",
		}),
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validator_health_checks_total",
			Help: "Total number of evaluation cycles by outcome",
		}, []string{"status"}),
		endpointProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validator_endpoint_probes_total",
			Help: "Total number of endpoint queries by endpoint and result",
		}, []string{"endpoint", "result"}),
		incidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validator_incidents_total",
			Help: "Total number of incidents by result (delivered, suppressed, abandoned)",
		}, []string{"result"}),
		deliveryFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "validator_incident_delivery_failures_total",
			Help: "Total number of rejected or failed paging attempts",
		}),
	}

	m.registry.MustRegister(
		m.currentHeight,
		m.blocksMissed,
		m.healthy,
		m.lastUpdate,
		m.checksTotal,
		m.endpointProbes,
		m.incidentsTotal,
		m.deliveryFails,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler returns the mux serving /metrics, /live and /ready.
func (m *Metrics) Handler() http.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	health.AddReadinessCheck("combined-reading", m.readinessCheck)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	return mux
}

// Serve starts the metrics server in the background when metrics are enabled.
func (m *Metrics) Serve(port int, logger *slog.Logger) {
	if !m.enabled {
		return
	}

	addr := fmt.Sprintf(":%d", port)
	go func() {
		logger.Info("Starting metrics server", "addr", addr)
		if err := http.ListenAndServe(addr, m.Handler()); err != nil {
			logger.Error("Metrics server stopped", "error", err)
		}
	}()
}

func (m *Metrics) readinessCheck() error {
	nanos := m.lastUpdateNanos.Load()
	if nanos == 0 {
		return fmt.Errorf("no successful reading yet")
	}
	if age := time.Since(time.Unix(0, nanos)); age > m.maxStaleness {
		return fmt.Errorf("last successful reading is %s old", age.Truncate(time.Second))
	}
	return nil
}

func (m *Metrics) UpdateCheck(result types.CheckResult) {
	m.checksTotal.WithLabelValues(string(result.Status)).Inc()

	healthy := 0.0
	if result.Healthy() {
		healthy = 1.0
	}
	m.healthy.Set(healthy)
}

func (m *Metrics) UpdateHeight(height int64) {
	m.currentHeight.Set(float64(height))
}

func (m *Metrics) UpdateReading(missed int64, at time.Time) {
	m.blocksMissed.Set(float64(missed))
	m.lastUpdate.Set(float64(at.Unix()))
	m.lastUpdateNanos.Store(at.UnixNano())
}

func (m *Metrics) UpdateEndpoint(status types.EndpointStatus) {
	result := "success"
	if status.Error != nil {
		result = "failure"
	}
	m.endpointProbes.WithLabelValues(status.URL, result).Inc()
}

func (m *Metrics) IncidentDelivered() {
	m.incidentsTotal.WithLabelValues("delivered").Inc()
}

func (m *Metrics) IncidentSuppressed() {
	m.incidentsTotal.WithLabelValues("suppressed").Inc()
}

func (m *Metrics) IncidentAbandoned() {
	m.incidentsTotal.WithLabelValues("abandoned").Inc()
}

func (m *Metrics) DeliveryFailed() {
	m.deliveryFails.Inc()
}

func (m *Metrics) IncidentsTotal(result string) prometheus.Counter {
	return m.incidentsTotal.WithLabelValues(result)
}

func (m *Metrics) DeliveryFailures() prometheus.Counter {
	return m.deliveryFails
}
