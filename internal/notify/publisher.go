// Package notify announces committed breach notifications on NATS.
// The persisted Notification row stays the source of truth; publishing is best effort.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/wonny/ldwatch/internal/contracts"
)

// Config holds the NATS connection settings
type Config struct {
	URL           string
	Subject       string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// Message is the wire payload for a created notification
type Message struct {
	NotificationID string                 `json:"notification_id"`
	ProjectID      string                 `json:"project_id"`
	DefaultEventID string                 `json:"default_event_id"`
	RuleOutputID   string                 `json:"rule_output_id"`
	Description    string                 `json:"description"`
	MetadataDetail map[string]interface{} `json:"metadata_detail,omitempty"`
	PublishedAt    time.Time              `json:"published_at"`
}

// NewMessage builds the payload for a committed notification
func NewMessage(n *contracts.Notification, at time.Time) Message {
	return Message{
		NotificationID: n.ID,
		ProjectID:      n.ProjectID,
		DefaultEventID: n.DefaultEventID,
		RuleOutputID:   n.RuleOutputID,
		Description:    n.Description,
		MetadataDetail: n.MetadataDetail,
		PublishedAt:    at.UTC(),
	}
}

// NATSPublisher publishes notifications to a subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
}

// NewNATSPublisher connects to NATS
func NewNATSPublisher(cfg Config, log zerolog.Logger) (*NATSPublisher, error) {
	l := log.With().Str("component", "notify").Logger()

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, subject: cfg.Subject, log: l}, nil
}

// PublishNotification publishes and flushes one message
func (p *NATSPublisher) PublishNotification(ctx context.Context, n *contracts.Notification) error {
	data, err := json.Marshal(NewMessage(n, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush notification %s: %w", n.ID, err)
	}

	p.log.Debug().
		Str("notification_id", n.ID).
		Str("subject", p.subject).
		Msg("notification published")
	return nil
}

// Close drains the connection
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// NopPublisher discards notifications when NATS is disabled
type NopPublisher struct{}

// PublishNotification does nothing
func (NopPublisher) PublishNotification(context.Context, *contracts.Notification) error {
	return nil
}
