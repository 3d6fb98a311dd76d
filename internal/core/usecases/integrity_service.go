package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/core/snap"
	"github.com/jmaguas/azenha/internal/pkg/wkt"
)

const auditPageSize = 500

// IntegrityService backs the geometry audit: stored geometry text must
// always decode, and unlinked structures get another chance to find
// their channel.
type IntegrityService struct {
	geoms      ports.GeometryRepository
	structures ports.StructureRepository
	channels   ports.ChannelRepository
	publisher  ports.EventPublisher
}

// NewIntegrityService creates a new IntegrityService.
func NewIntegrityService(geoms ports.GeometryRepository, structures ports.StructureRepository, channels ports.ChannelRepository, publisher ports.EventPublisher) *IntegrityService {
	return &IntegrityService{geoms: geoms, structures: structures, channels: channels, publisher: publisher}
}

// VerifyGeometries pages through every stored geometry and decodes it.
// A row that fails to decode is corruption: it is reported, never
// repaired silently. Returns per-table counts and the offending IDs.
func (s *IntegrityService) VerifyGeometries(ctx context.Context) (checkedStructures, checkedChannels int, malformed []string, err error) {
	afterID := ""
	for {
		rows, err := s.geoms.ListGeometries(ctx, afterID, auditPageSize)
		if err != nil {
			return checkedStructures, checkedChannels, malformed, fmt.Errorf("list geometries after %q: %w", afterID, err)
		}
		if len(rows) == 0 {
			return checkedStructures, checkedChannels, malformed, nil
		}

		for _, row := range rows {
			var decodeErr error
			switch row.Table {
			case "structures":
				checkedStructures++
				_, decodeErr = wkt.DecodePoint(row.Geom)
			case "channels":
				checkedChannels++
				_, decodeErr = wkt.DecodeLineString(row.Geom)
			default:
				decodeErr = fmt.Errorf("unknown geometry table %q", row.Table)
			}
			if decodeErr != nil {
				malformed = append(malformed, row.Table+"/"+row.ID)
			}
		}

		afterID = rows[len(rows)-1].ID
	}
}

// RelinkStructures runs the resolver for every structure without a
// channel link, against channels only, and persists any line match. Point
// matches are meaningless here — a structure cannot link to itself or to
// a sibling — so the scan passes no structures at all.
func (s *IntegrityService) RelinkStructures(ctx context.Context, thresholdMeters float64) (int, error) {
	if thresholdMeters <= 0 {
		thresholdMeters = snap.DefaultThresholdMeters
	}

	channels, err := s.channels.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("load channels: %w", err)
	}
	if len(channels) == 0 {
		return 0, nil
	}

	unlinked, err := s.structures.ListUnlinked(ctx, auditPageSize)
	if err != nil {
		return 0, fmt.Errorf("list unlinked structures: %w", err)
	}

	relinked := 0
	for i := range unlinked {
		res := snap.Resolve(unlinked[i].Location, nil, channels, thresholdMeters)
		if res.Kind != domain.SnapLine {
			continue
		}
		if err := s.structures.SetChannel(ctx, unlinked[i].ID, res.FeatureID); err != nil {
			return relinked, fmt.Errorf("link structure %s to channel %s: %w", unlinked[i].ID, res.FeatureID, err)
		}
		relinked++

		if s.publisher != nil {
			st := unlinked[i]
			st.ChannelID = res.FeatureID
			_ = s.publisher.PublishStructureEvent(ctx, "updated", &st)
		}
	}

	// One broadcast per pass, not per structure: live map clients only
	// need to know the catalog moved under them.
	if relinked > 0 && s.publisher != nil {
		note, err := json.Marshal(map[string]interface{}{
			"event": "structures_relinked",
			"count": relinked,
		})
		if err == nil {
			_ = s.publisher.PublishBroadcast(ctx, note)
		}
	}

	return relinked, nil
}
