package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
)

// ChannelService handles line-feature business logic.
type ChannelService struct {
	channels  ports.ChannelRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	snapper   *SnapService
}

// NewChannelService creates a new ChannelService.
func NewChannelService(channels ports.ChannelRepository, cache ports.CacheService, publisher ports.EventPublisher, snapper *SnapService) *ChannelService {
	return &ChannelService{channels: channels, cache: cache, publisher: publisher, snapper: snapper}
}

// Create stores a new channel. Path validation goes through the domain
// constructor so a short path never reaches storage or the resolver.
func (s *ChannelService) Create(ctx context.Context, id, name, color, municipality string, path []domain.Coordinate) (*domain.Channel, error) {
	if name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	ch, err := domain.NewChannel(id, name, color, path)
	if err != nil {
		return nil, err
	}
	for _, c := range path {
		if !c.Valid() {
			return nil, fmt.Errorf("vertex %v is outside the WGS 84 domain", c)
		}
	}
	ch.Municipality = municipality

	if err := s.channels.Upsert(ctx, ch); err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}

	s.afterWrite(ctx, "created", ch)
	return ch, nil
}

// Update replaces a channel's fields and path.
func (s *ChannelService) Update(ctx context.Context, ch *domain.Channel) error {
	if ch.ID == "" {
		return fmt.Errorf("channel id is required")
	}
	if len(ch.Path) < 2 {
		return domain.ErrPathTooShort
	}
	for _, c := range ch.Path {
		if !c.Valid() {
			return fmt.Errorf("vertex %v is outside the WGS 84 domain", c)
		}
	}

	if err := s.channels.Upsert(ctx, ch); err != nil {
		return fmt.Errorf("update channel: %w", err)
	}

	s.afterWrite(ctx, "updated", ch)
	return nil
}

// GetByID returns a single channel.
func (s *ChannelService) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	cacheKey := "channels:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var ch domain.Channel
			if err := json.Unmarshal(data, &ch); err == nil {
				return &ch, nil
			}
		}
	}

	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && ch != nil {
		if data, err := json.Marshal(ch); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return ch, nil
}

// List returns channels, optionally restricted to one municipality.
func (s *ChannelService) List(ctx context.Context, municipality string) ([]domain.Channel, error) {
	return s.channels.List(ctx, municipality)
}

// ListInViewport returns channels whose stored bounding box overlaps b.
// A box overlap is not a path intersection; map renderers clip the
// decoded paths themselves.
func (s *ChannelService) ListInViewport(ctx context.Context, b domain.Bounds) ([]domain.Channel, error) {
	return s.channels.ListIntersecting(ctx, b)
}

// Delete removes a channel. Structures referencing it drop back to
// unlinked (the foreign key is set-null) and the audit workflow relinks
// them on its next pass.
func (s *ChannelService) Delete(ctx context.Context, id string) error {
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ch == nil {
		return nil
	}

	if err := s.channels.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}

	s.afterWrite(ctx, "deleted", ch)
	return nil
}

func (s *ChannelService) afterWrite(ctx context.Context, action string, ch *domain.Channel) {
	if s.snapper != nil {
		s.snapper.InvalidateSnapshot()
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "channels:id:"+ch.ID)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishChannelEvent(ctx, action, ch)
	}
}
