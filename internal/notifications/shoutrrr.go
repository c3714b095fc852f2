// internal/notifications/shoutrrr.go - Shoutrrr notification handling
package notifications

import (
	"log/slog"

	"github.com/containrrr/shoutrrr"
	router "github.com/containrrr/shoutrrr/pkg/router"
)

// ShoutrrrNotifier mirrors delivered incidents to chat services. Delivery is best effort.
type ShoutrrrNotifier struct {
	senders []*router.ServiceRouter
	logger  *slog.Logger
}

func NewShoutrrrNotifier(urls []string, logger *slog.Logger) *ShoutrrrNotifier {
	var senders []*router.ServiceRouter

	for _, url := range urls {
		if sender, err := shoutrrr.CreateSender(url); err == nil {
			senders = append(senders, sender)
		} else {
			logger.Warn("Failed to create Shoutrrr sender", "error", err)
		}
	}

	return &ShoutrrrNotifier{
		senders: senders,
		logger:  logger,
	}
}

func (s *ShoutrrrNotifier) Send(message string) {
	for _, sender := range s.senders {
		for _, err := range sender.Send(message, nil) {
			if err != nil {
				s.logger.Warn("Failed to send Shoutrrr notification", "error", err)
			}
		}
	}
}
