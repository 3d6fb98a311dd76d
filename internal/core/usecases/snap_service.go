package usecases

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/snap"
)

// Feature snapshots live this long before a resolve reloads them. Editing
// sessions fire many resolves in quick succession; one snapshot per burst
// is the intended granularity. Mutations through this process invalidate
// immediately, so the TTL only bounds staleness from other writers.
const snapshotTTL = 30 * time.Second

const (
	snapshotStructures = "structures"
	snapshotChannels   = "channels"
)

// SnapService wraps the pure resolver with catalog access. The resolver
// itself stays stateless; the in-process snapshot memo lives here, one
// layer up, where it can be invalidated on writes.
type SnapService struct {
	structures ports.StructureRepository
	channels   ports.ChannelRepository
	publisher  ports.EventPublisher
	memo       *gocache.Cache
}

// NewSnapService creates a new SnapService.
func NewSnapService(structures ports.StructureRepository, channels ports.ChannelRepository, publisher ports.EventPublisher) *SnapService {
	return &SnapService{
		structures: structures,
		channels:   channels,
		publisher:  publisher,
		memo:       gocache.New(snapshotTTL, 2*snapshotTTL),
	}
}

// Resolve answers whether query lands on an existing feature within
// thresholdMeters. A non-positive threshold selects the default. The
// error reports catalog-load failures only; "no match" is a SnapNone
// result, not an error.
func (s *SnapService) Resolve(ctx context.Context, query domain.Coordinate, thresholdMeters float64) (domain.SnapResult, error) {
	return s.resolve(ctx, query, thresholdMeters, "")
}

// ResolveForEdit is Resolve with one structure excluded from the scan.
// Moving a structure must not snap it onto its own previous position.
func (s *SnapService) ResolveForEdit(ctx context.Context, query domain.Coordinate, thresholdMeters float64, excludeStructureID string) (domain.SnapResult, error) {
	return s.resolve(ctx, query, thresholdMeters, excludeStructureID)
}

func (s *SnapService) resolve(ctx context.Context, query domain.Coordinate, thresholdMeters float64, excludeID string) (domain.SnapResult, error) {
	if thresholdMeters <= 0 {
		thresholdMeters = snap.DefaultThresholdMeters
	}

	structures, channels, err := s.snapshot(ctx)
	if err != nil {
		return domain.SnapResult{Kind: domain.SnapNone}, err
	}

	if excludeID != "" {
		filtered := make([]domain.Structure, 0, len(structures))
		for _, st := range structures {
			if st.ID != excludeID {
				filtered = append(filtered, st)
			}
		}
		structures = filtered
	}

	res := snap.Resolve(query, structures, channels, thresholdMeters)

	if s.publisher != nil && res.Kind != domain.SnapNone {
		ev := &domain.SnapEvent{Query: query, Result: res, Time: time.Now()}
		_ = s.publisher.PublishSnapResolved(ctx, ev)
	}

	return res, nil
}

// InvalidateSnapshot drops the memoized feature sets. Mutating services
// call this so the next resolve sees the write.
func (s *SnapService) InvalidateSnapshot() {
	s.memo.Delete(snapshotStructures)
	s.memo.Delete(snapshotChannels)
}

func (s *SnapService) snapshot(ctx context.Context) ([]domain.Structure, []domain.Channel, error) {
	var structures []domain.Structure
	if v, ok := s.memo.Get(snapshotStructures); ok {
		structures = v.([]domain.Structure)
	} else {
		loaded, err := s.structures.List(ctx, ports.StructureFilter{})
		if err != nil {
			return nil, nil, fmt.Errorf("load structures: %w", err)
		}
		s.memo.Set(snapshotStructures, loaded, gocache.DefaultExpiration)
		structures = loaded
	}

	var channels []domain.Channel
	if v, ok := s.memo.Get(snapshotChannels); ok {
		channels = v.([]domain.Channel)
	} else {
		loaded, err := s.channels.List(ctx, "")
		if err != nil {
			return nil, nil, fmt.Errorf("load channels: %w", err)
		}
		s.memo.Set(snapshotChannels, loaded, gocache.DefaultExpiration)
		channels = loaded
	}

	return structures, channels, nil
}
