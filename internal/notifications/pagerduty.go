// internal/notifications/pagerduty.go - PagerDuty Events v2 client
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"val-sentry/internal/config"
)

const (
	UnknownBlocksMissed = "?"
	DefaultSummary      = "Missing blocks!"
)

// Incident is the content of one alert; the wire event is rebuilt from it on demand.
type Incident struct {
	Summary      string
	BlocksMissed string
}

func MissedBlocksIncident(missed int64) Incident {
	return Incident{Summary: DefaultSummary, BlocksMissed: strconv.FormatInt(missed, 10)}
}

func TextIncident(text string) Incident {
	return Incident{Summary: text, BlocksMissed: UnknownBlocksMissed}
}

type Event struct {
	Payload     EventPayload `json:"payload"`
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Client      string       `json:"client"`
	ClientURL   string       `json:"client_url"`
	Links       []Link       `json:"links"`
}

type EventPayload struct {
	Summary       string            `json:"summary"`
	Severity      string            `json:"severity"`
	Source        string            `json:"source"`
	Component     string            `json:"component"`
	CustomDetails map[string]string `json:"custom_details"`
}

type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// DeliveryError reports a paging attempt that was not accepted.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("pagerduty returned status %d: %s", e.StatusCode, e.Body)
}

type PagerDutyClient struct {
	url        string
	routingKey string
	validator  string
	source     string
	client     string
	clientURL  string
	link       string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewPagerDutyClient(cfg *config.Config, logger *slog.Logger) *PagerDutyClient {
	return &PagerDutyClient{
		url:        cfg.PagerDutyURL,
		routingKey: cfg.RoutingKey,
		validator:  cfg.Validator,
		source:     cfg.AlertSource,
		client:     cfg.AlertClient,
		clientURL:  cfg.AlertClientURL,
		link:       cfg.ValidatorLink,
		httpClient: &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		logger:     logger,
	}
}

// BuildEvent renders incident as a trigger event. Retries of one incident share dedupKey.
func (p *PagerDutyClient) BuildEvent(incident Incident, dedupKey string) Event {
	event := Event{
		Payload: EventPayload{
			Summary:   incident.Summary,
			Severity:  "critical",
			Source:    p.source,
			Component: "validator",
			CustomDetails: map[string]string{
				"blocks missed": incident.BlocksMissed,
				"validator":     p.validator,
			},
		},
		RoutingKey:  p.routingKey,
		EventAction: "trigger",
		DedupKey:    dedupKey,
		Client:      p.client,
		ClientURL:   p.clientURL,
	}
	if p.link != "" {
		event.Links = []Link{{Href: p.link, Text: "Mintscan link!"}}
	}
	return event
}

// Send posts event once. Anything but 202 Accepted is a DeliveryError.
func (p *PagerDutyClient) Send(ctx context.Context, event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal pagerduty event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debug("Sending PagerDuty event", "url", p.url, "summary", event.Payload.Summary, "payload_size", len(jsonData))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}
