package ports

import (
	"context"

	"github.com/jmaguas/azenha/internal/core/domain"
)

// EventPublisher publishes catalog events to a message broker.
type EventPublisher interface {
	PublishStructureEvent(ctx context.Context, action string, s *domain.Structure) error
	PublishChannelEvent(ctx context.Context, action string, c *domain.Channel) error
	PublishSnapResolved(ctx context.Context, ev *domain.SnapEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber consumes catalog events from a message broker. Snap
// resolutions are publish-only: relays read them straight off the wire.
type EventSubscriber interface {
	SubscribeStructureEvents(ctx context.Context, handler func(ctx context.Context, s *domain.Structure) error) error
	SubscribeChannelEvents(ctx context.Context, handler func(ctx context.Context, c *domain.Channel) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
