package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
)

// StructureService handles point-feature business logic. Writes run the
// snap resolution the map surface depends on: the stored coordinate is
// the snapped one, and a channel snap records the link.
type StructureService struct {
	structures ports.StructureRepository
	cache      ports.CacheService
	publisher  ports.EventPublisher
	snapper    *SnapService
}

// NewStructureService creates a new StructureService.
func NewStructureService(structures ports.StructureRepository, cache ports.CacheService, publisher ports.EventPublisher, snapper *SnapService) *StructureService {
	return &StructureService{structures: structures, cache: cache, publisher: publisher, snapper: snapper}
}

// Create places a new structure. The submitted location is resolved
// against the catalog first; a match replaces it with the snapped
// coordinate, and a channel match sets the channel link.
func (s *StructureService) Create(ctx context.Context, st *domain.Structure, thresholdMeters float64) (*domain.SnapResult, error) {
	if err := validateStructure(st); err != nil {
		return nil, err
	}

	var res domain.SnapResult
	if s.snapper != nil {
		var err error
		res, err = s.snapper.Resolve(ctx, st.Location, thresholdMeters)
		if err != nil {
			return nil, err
		}
		applySnap(st, &res)
	}

	if err := s.structures.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("create structure: %w", err)
	}

	s.afterWrite(ctx, "created", st)
	return &res, nil
}

// Update replaces a structure's fields. The structure itself is excluded
// from the snap scan so a small move does not snap back onto the old
// position.
func (s *StructureService) Update(ctx context.Context, st *domain.Structure, thresholdMeters float64) (*domain.SnapResult, error) {
	if st.ID == "" {
		return nil, fmt.Errorf("structure id is required")
	}
	if err := validateStructure(st); err != nil {
		return nil, err
	}

	existing, err := s.structures.GetByID(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("load structure: %w", err)
	}
	if existing == nil {
		return nil, nil
	}

	var res domain.SnapResult
	if s.snapper != nil {
		res, err = s.snapper.ResolveForEdit(ctx, st.Location, thresholdMeters, st.ID)
		if err != nil {
			return nil, err
		}
		applySnap(st, &res)
	}

	if err := s.structures.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("update structure: %w", err)
	}

	s.afterWrite(ctx, "updated", st)
	return &res, nil
}

// GetByID returns a single structure.
func (s *StructureService) GetByID(ctx context.Context, id string) (*domain.Structure, error) {
	cacheKey := "structures:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var st domain.Structure
			if err := json.Unmarshal(data, &st); err == nil {
				return &st, nil
			}
		}
	}

	st, err := s.structures.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && st != nil {
		if data, err := json.Marshal(st); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}

	return st, nil
}

// List returns structures matching the filter.
func (s *StructureService) List(ctx context.Context, filter ports.StructureFilter) ([]domain.Structure, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("unknown structure kind %q", filter.Kind)
	}
	return s.structures.List(ctx, filter)
}

// FindNearby returns structures within radiusMeters of the given point,
// nearest first.
func (s *StructureService) FindNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("structures:nearby:%.4f:%.4f:%.0f:%d", center.Lat, center.Lng, radiusMeters, limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var ss []domain.Structure
			if err := json.Unmarshal(data, &ss); err == nil {
				return ss, nil
			}
		}
	}

	ss, err := s.structures.FindNearby(ctx, center, radiusMeters, limit)
	if err != nil {
		return nil, err
	}

	// Nearby results move only when the catalog does; 5 minutes is safe.
	if s.cache != nil {
		if data, err := json.Marshal(ss); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}

	return ss, nil
}

// Delete removes a structure.
func (s *StructureService) Delete(ctx context.Context, id string) error {
	st, err := s.structures.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}

	if err := s.structures.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete structure: %w", err)
	}

	s.afterWrite(ctx, "deleted", st)
	return nil
}

// CountByMunicipality tallies structures per kind for one municipality.
func (s *StructureService) CountByMunicipality(ctx context.Context, municipality string) ([]domain.KindCount, error) {
	if municipality == "" {
		return nil, fmt.Errorf("municipality is required")
	}
	return s.structures.CountByMunicipality(ctx, municipality)
}

func (s *StructureService) afterWrite(ctx context.Context, action string, st *domain.Structure) {
	if s.snapper != nil {
		s.snapper.InvalidateSnapshot()
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "structures:id:"+st.ID)
	}
	if s.publisher != nil {
		_ = s.publisher.PublishStructureEvent(ctx, action, st)
	}
}

// applySnap folds a resolution into the structure about to be stored.
func applySnap(st *domain.Structure, res *domain.SnapResult) {
	switch res.Kind {
	case domain.SnapPoint, domain.SnapLine:
		st.Location = *res.Snapped
	}
	if res.Kind == domain.SnapLine {
		st.ChannelID = res.FeatureID
	}
}

func validateStructure(st *domain.Structure) error {
	if st.Name == "" {
		return fmt.Errorf("structure name is required")
	}
	if !st.Kind.Valid() {
		return fmt.Errorf("unknown structure kind %q", st.Kind)
	}
	if !st.Location.Valid() {
		return fmt.Errorf("location %v is outside the WGS 84 domain", st.Location)
	}
	return nil
}
