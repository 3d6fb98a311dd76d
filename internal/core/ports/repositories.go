package ports

import (
	"context"

	"github.com/jmaguas/azenha/internal/core/domain"
)

// StructureFilter narrows structure listings.
type StructureFilter struct {
	Kind         domain.StructureKind
	Municipality string
	ChannelID    string
}

// StructureRepository persists point features.
type StructureRepository interface {
	Upsert(ctx context.Context, s *domain.Structure) error
	UpsertBatch(ctx context.Context, ss []domain.Structure) error
	GetByID(ctx context.Context, id string) (*domain.Structure, error)
	List(ctx context.Context, filter StructureFilter) ([]domain.Structure, error)
	FindNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error)
	// ListUnlinked returns structures with no channel reference, for the
	// audit workflow's relink pass.
	ListUnlinked(ctx context.Context, limit int) ([]domain.Structure, error)
	SetChannel(ctx context.Context, id, channelID string) error
	Delete(ctx context.Context, id string) error
	CountByMunicipality(ctx context.Context, municipality string) ([]domain.KindCount, error)
}

// ChannelRepository persists line features.
type ChannelRepository interface {
	Upsert(ctx context.Context, c *domain.Channel) error
	UpsertBatch(ctx context.Context, cs []domain.Channel) error
	GetByID(ctx context.Context, id string) (*domain.Channel, error)
	List(ctx context.Context, municipality string) ([]domain.Channel, error)
	ListIntersecting(ctx context.Context, b domain.Bounds) ([]domain.Channel, error)
	Delete(ctx context.Context, id string) error
}

// GeometryRow feeds the audit workflow raw stored geometry text, before
// any decoding, so corruption stays observable.
type GeometryRow struct {
	ID    string
	Table string
	Geom  string
}

// GeometryRepository pages raw geometry text out of storage.
type GeometryRepository interface {
	ListGeometries(ctx context.Context, afterID string, limit int) ([]GeometryRow, error)
}
