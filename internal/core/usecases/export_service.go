package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const exportCacheKey = "export:geojson"

// ExportService renders the catalog as a GeoJSON FeatureCollection for
// map frontends and GIS tools. Only the full export is cached; filtered
// exports are cheap enough to build per request.
type ExportService struct {
	structures ports.StructureRepository
	channels   ports.ChannelRepository
	cache      ports.CacheService
}

// NewExportService creates a new ExportService.
func NewExportService(structures ports.StructureRepository, channels ports.ChannelRepository, cache ports.CacheService) *ExportService {
	return &ExportService{structures: structures, channels: channels, cache: cache}
}

// BuildGeoJSON returns the catalog as one FeatureCollection, optionally
// restricted to a municipality. Channels come first so map renderers
// draw structures on top of the lines they sit on.
func (s *ExportService) BuildGeoJSON(ctx context.Context, municipality string) ([]byte, error) {
	cacheable := municipality == ""
	if cacheable && s.cache != nil {
		if data, err := s.cache.Get(ctx, exportCacheKey); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	channels, err := s.channels.List(ctx, municipality)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	structures, err := s.structures.List(ctx, ports.StructureFilter{Municipality: municipality})
	if err != nil {
		return nil, fmt.Errorf("load structures: %w", err)
	}

	fc := geojson.NewFeatureCollection()
	for _, ch := range channels {
		line := make(orb.LineString, 0, len(ch.Path))
		for _, v := range ch.Path {
			line = append(line, orb.Point{v.Lng, v.Lat})
		}
		f := geojson.NewFeature(line)
		f.ID = ch.ID
		f.Properties["feature"] = "channel"
		f.Properties["name"] = ch.Name
		f.Properties["color"] = ch.Color
		if ch.Municipality != "" {
			f.Properties["municipality"] = ch.Municipality
		}
		fc.Append(f)
	}
	for _, st := range structures {
		f := geojson.NewFeature(orb.Point{st.Location.Lng, st.Location.Lat})
		f.ID = st.ID
		f.Properties["feature"] = "structure"
		f.Properties["kind"] = string(st.Kind)
		f.Properties["name"] = st.Name
		if st.ChannelID != "" {
			f.Properties["channel_id"] = st.ChannelID
		}
		if st.Municipality != "" {
			f.Properties["municipality"] = st.Municipality
		}
		fc.Append(f)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}

	if cacheable && s.cache != nil {
		_ = s.cache.Set(ctx, exportCacheKey, data, 3600)
	}
	return data, nil
}

// Invalidate drops the cached export. The event consumer calls this on
// every catalog write, so a rebuild happens at most once per write burst.
func (s *ExportService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, exportCacheKey)
}
