package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/nats-io/nats.go"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
// Consumers are durable, so events published while the worker is down
// replay on reconnect.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js}, nil
}

func (s *Subscriber) SubscribeStructureEvents(ctx context.Context, handler func(ctx context.Context, st *domain.Structure) error) error {
	sub, err := s.js.Subscribe("catalog.structure.>", func(msg *nats.Msg) {
		var st domain.Structure
		if err := json.Unmarshal(msg.Data, &st); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &st); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("structure-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

func (s *Subscriber) SubscribeChannelEvents(ctx context.Context, handler func(ctx context.Context, c *domain.Channel) error) error {
	sub, err := s.js.Subscribe("catalog.channel.>", func(msg *nats.Msg) {
		var c domain.Channel
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			_ = msg.Nak()
			return
		}
		if err := handler(ctx, &c); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("channel-processor"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
