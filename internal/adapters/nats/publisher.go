package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/nats-io/nats.go"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist. Interest retention keeps events around for
	// the durable export consumer while dropping them once everyone has
	// acked; snap resolutions are breadcrumbs with a short shelf life.
	streams := []nats.StreamConfig{
		{
			Name:      "CATALOG_EVENTS",
			Subjects:  []string{"catalog.structure.>", "catalog.channel.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SNAP_RESOLUTIONS",
			Subjects:  []string{"catalog.snap.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishStructureEvent publishes a structure write. The action rides in
// the subject so consumers can filter without decoding the body.
func (p *Publisher) PublishStructureEvent(ctx context.Context, action string, s *domain.Structure) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("catalog.structure."+action, data)
	return err
}

func (p *Publisher) PublishChannelEvent(ctx context.Context, action string, c *domain.Channel) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("catalog.channel."+action, data)
	return err
}

func (p *Publisher) PublishSnapResolved(ctx context.Context, ev *domain.SnapEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("catalog.snap.resolved", data)
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish("catalog.updates.broadcast", data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
