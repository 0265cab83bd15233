package native

import (
	"context"
	"errors"
	"fmt"

	"github.com/brutella/dnssd"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
)

// Announcement describes a service published on the local network.
type Announcement struct {
	Name   string
	Type   string // e.g. "_mdnshelper._tcp"
	Domain string // "local." when empty
	Port   int
	Text   map[string]string
}

// Announce publishes a and answers queries for it until ctx ends.
func Announce(ctx context.Context, a Announcement) error {
	if a.Name == "" || a.Type == "" || a.Port <= 0 {
		return fmt.Errorf("announce: name, type and port are required")
	}
	domain := a.Domain
	if domain == "" {
		domain = service.LocalDomain
	}

	svc, err := dnssd.NewService(dnssd.Config{
		Name:   a.Name,
		Type:   a.Type,
		Domain: domain,
		Text:   a.Text,
		Port:   a.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}
	if _, err := rp.Add(svc); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	logging.Info("Announcing service",
		zap.String("service_name", a.Name),
		zap.String("service_type", a.Type),
		zap.Int("port", a.Port))

	if err := rp.Respond(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mDNS responder failed: %w", err)
	}
	return nil
}
