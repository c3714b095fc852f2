package notifications

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"val-sentry/internal/config"
	"val-sentry/internal/prometheus"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *recordingTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	return t.c
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type pagingServer struct {
	*httptest.Server
	mu       sync.Mutex
	statuses []int
	events   []Event
}

// newPagingServer answers with statuses in order, then 202 forever.
func newPagingServer(t *testing.T, statuses ...int) *pagingServer {
	s := &pagingServer{statuses: statuses}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			t.Errorf("failed to decode event: %v", err)
		}

		s.mu.Lock()
		s.events = append(s.events, event)
		status := http.StatusAccepted
		if len(s.statuses) > 0 {
			status = s.statuses[0]
			s.statuses = s.statuses[1:]
		}
		s.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *pagingServer) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func testConfig(url string) *config.Config {
	cfg := config.Defaults()
	cfg.RoutingKey = "routing-key"
	cfg.PagerDutyURL = url
	return &cfg
}

func newTestNotifier(cfg *config.Config, clock *fakeClock, timer *recordingTimer) (*Notifier, *prometheus.Metrics) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := prometheus.New(false, time.Minute)
	n := New(cfg, metrics, logger)
	n.now = clock.Now
	n.newTimer = func() backoff.Timer { return timer }
	return n, metrics
}

func TestDispatch_Delivers(t *testing.T) {
	server := newPagingServer(t)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	n, _ := newTestNotifier(testConfig(server.URL), clock, &recordingTimer{})

	assert.True(t, n.Dispatch(context.Background(), MissedBlocksIncident(2500)))
	assert.Equal(t, clock.now, n.LastAlert())

	events := server.Events()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, "routing-key", event.RoutingKey)
	assert.Equal(t, "trigger", event.EventAction)
	assert.Equal(t, "critical", event.Payload.Severity)
	assert.Equal(t, "validator", event.Payload.Component)
	assert.Equal(t, DefaultSummary, event.Payload.Summary)
	assert.Equal(t, "2500", event.Payload.CustomDetails["blocks missed"])
	assert.Equal(t, config.DefaultValidator, event.Payload.CustomDetails["validator"])
	assert.NotEmpty(t, event.DedupKey)
	require.Len(t, event.Links, 1)
	assert.Equal(t, config.DefaultValidatorURL, event.Links[0].Href)
}

func TestDispatch_RateLimit(t *testing.T) {
	tests := []struct {
		name      string
		gap       time.Duration
		delivered int
	}{
		{name: "60 seconds apart", gap: 60 * time.Second, delivered: 1},
		{name: "exactly at cooldown", gap: 300 * time.Second, delivered: 1},
		{name: "301 seconds apart", gap: 301 * time.Second, delivered: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newPagingServer(t)
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			n, metrics := newTestNotifier(testConfig(server.URL), clock, &recordingTimer{})

			assert.True(t, n.Dispatch(context.Background(), TextIncident("All endpoints are invalid")))
			clock.Advance(tt.gap)
			second := n.Dispatch(context.Background(), TextIncident("All endpoints are invalid"))

			assert.Equal(t, tt.delivered == 2, second)
			assert.Len(t, server.Events(), tt.delivered)
			assert.Equal(t, float64(tt.delivered), testutil.ToFloat64(metrics.IncidentsTotal("delivered")))
		})
	}
}

func TestDispatch_RetriesUntilAccepted(t *testing.T) {
	server := newPagingServer(t, http.StatusInternalServerError, http.StatusTooManyRequests, http.StatusOK)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	timer := &recordingTimer{}
	n, metrics := newTestNotifier(testConfig(server.URL), clock, timer)

	assert.True(t, n.Dispatch(context.Background(), MissedBlocksIncident(3000)))

	assert.Equal(t, []time.Duration{time.Minute, time.Minute, time.Minute}, timer.waits)
	events := server.Events()
	require.Len(t, events, 4)
	for _, event := range events[1:] {
		assert.Equal(t, events[0].DedupKey, event.DedupKey, "retries reuse the dedup key")
		assert.Equal(t, events[0].Payload, event.Payload)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DeliveryFailures()))
	assert.False(t, n.LastAlert().IsZero())
}

func TestDispatch_AbandonedOnCancel(t *testing.T) {
	server := newPagingServer(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	n, metrics := newTestNotifier(testConfig(server.URL), clock, &recordingTimer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.False(t, n.Dispatch(ctx, TextIncident("No valid response after 120 seconds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IncidentsTotal("abandoned")))
	assert.True(t, n.LastAlert().IsZero(), "an abandoned incident does not start the cooldown")

	assert.True(t, n.Dispatch(context.Background(), TextIncident("No valid response after 120 seconds")))
}

func TestBuildEvent_Placeholders(t *testing.T) {
	client := NewPagerDutyClient(testConfig("http://unused"), slog.New(slog.NewTextHandler(io.Discard, nil)))

	withCount, err := json.Marshal(client.BuildEvent(MissedBlocksIncident(50), "k"))
	require.NoError(t, err)
	assert.Contains(t, string(withCount), `"blocks missed":"50"`)

	text, err := json.Marshal(client.BuildEvent(TextIncident("All endpoints are invalid"), "k"))
	require.NoError(t, err)
	assert.Contains(t, string(text), `"blocks missed":"?"`)
	assert.Contains(t, string(text), `"summary":"All endpoints are invalid"`)
}

func TestSend_DeliveryError(t *testing.T) {
	server := newPagingServer(t, http.StatusBadRequest)
	client := NewPagerDutyClient(testConfig(server.URL), slog.New(slog.NewTextHandler(io.Discard, nil)))

	err := client.Send(context.Background(), client.BuildEvent(MissedBlocksIncident(1), "k"))
	var deliveryErr *DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusBadRequest, deliveryErr.StatusCode)
}

func TestShoutrrrNotifier_SkipsInvalidURLs(t *testing.T) {
	s := NewShoutrrrNotifier([]string{"not a url", "logger://"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Len(t, s.senders, 1)
	s.Send("test message")
}
