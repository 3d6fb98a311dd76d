package usecases_test

import (
	"context"
	"errors"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
)

var errCacheMiss = errors.New("cache miss")

// Function-field mocks shared across the service tests.

// --- Mock StructureRepository ---

type mockStructureRepo struct {
	upsertFn       func(ctx context.Context, s *domain.Structure) error
	getByIDFn      func(ctx context.Context, id string) (*domain.Structure, error)
	listFn         func(ctx context.Context, filter ports.StructureFilter) ([]domain.Structure, error)
	findNearbyFn   func(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error)
	listUnlinkedFn func(ctx context.Context, limit int) ([]domain.Structure, error)
	setChannelFn   func(ctx context.Context, id, channelID string) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockStructureRepo) Upsert(ctx context.Context, s *domain.Structure) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, s)
	}
	return nil
}

func (m *mockStructureRepo) UpsertBatch(ctx context.Context, ss []domain.Structure) error { return nil }

func (m *mockStructureRepo) GetByID(ctx context.Context, id string) (*domain.Structure, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockStructureRepo) List(ctx context.Context, filter ports.StructureFilter) ([]domain.Structure, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockStructureRepo) FindNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error) {
	if m.findNearbyFn != nil {
		return m.findNearbyFn(ctx, center, radiusMeters, limit)
	}
	return nil, nil
}

func (m *mockStructureRepo) ListUnlinked(ctx context.Context, limit int) ([]domain.Structure, error) {
	if m.listUnlinkedFn != nil {
		return m.listUnlinkedFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockStructureRepo) SetChannel(ctx context.Context, id, channelID string) error {
	if m.setChannelFn != nil {
		return m.setChannelFn(ctx, id, channelID)
	}
	return nil
}

func (m *mockStructureRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockStructureRepo) CountByMunicipality(ctx context.Context, municipality string) ([]domain.KindCount, error) {
	return nil, nil
}

// --- Mock ChannelRepository ---

type mockChannelRepo struct {
	upsertFn           func(ctx context.Context, c *domain.Channel) error
	getByIDFn          func(ctx context.Context, id string) (*domain.Channel, error)
	listFn             func(ctx context.Context, municipality string) ([]domain.Channel, error)
	listIntersectingFn func(ctx context.Context, b domain.Bounds) ([]domain.Channel, error)
	deleteFn           func(ctx context.Context, id string) error
}

func (m *mockChannelRepo) Upsert(ctx context.Context, c *domain.Channel) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, c)
	}
	return nil
}

func (m *mockChannelRepo) UpsertBatch(ctx context.Context, cs []domain.Channel) error { return nil }

func (m *mockChannelRepo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChannelRepo) List(ctx context.Context, municipality string) ([]domain.Channel, error) {
	if m.listFn != nil {
		return m.listFn(ctx, municipality)
	}
	return nil, nil
}

func (m *mockChannelRepo) ListIntersecting(ctx context.Context, b domain.Bounds) ([]domain.Channel, error) {
	if m.listIntersectingFn != nil {
		return m.listIntersectingFn(ctx, b)
	}
	return nil, nil
}

func (m *mockChannelRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// --- Mock GeometryRepository ---

type mockGeometryRepo struct {
	listGeometriesFn func(ctx context.Context, afterID string, limit int) ([]ports.GeometryRow, error)
}

func (m *mockGeometryRepo) ListGeometries(ctx context.Context, afterID string, limit int) ([]ports.GeometryRow, error) {
	if m.listGeometriesFn != nil {
		return m.listGeometriesFn(ctx, afterID, limit)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	store map[string][]byte
}

func newMockCache() *mockCache {
	return &mockCache{store: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if data, ok := m.store[key]; ok {
		return data, nil
	}
	return nil, errCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.store[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	structureEvents []string // "action:id"
	channelEvents   []string
	snapEvents      []domain.SnapEvent
	broadcasts      [][]byte
}

func (m *mockPublisher) PublishStructureEvent(ctx context.Context, action string, s *domain.Structure) error {
	m.structureEvents = append(m.structureEvents, action+":"+s.ID)
	return nil
}

func (m *mockPublisher) PublishChannelEvent(ctx context.Context, action string, c *domain.Channel) error {
	m.channelEvents = append(m.channelEvents, action+":"+c.ID)
	return nil
}

func (m *mockPublisher) PublishSnapResolved(ctx context.Context, ev *domain.SnapEvent) error {
	m.snapEvents = append(m.snapEvents, *ev)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error {
	m.broadcasts = append(m.broadcasts, data)
	return nil
}
