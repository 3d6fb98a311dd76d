// Package snap answers one question: is there an existing catalog feature
// within tolerance of a survey coordinate, and if so, exactly where does
// the coordinate land?
//
// Resolution is a pure function over read-only inputs. It holds no state,
// caches nothing, and recomputes from scratch on every call — one call per
// interactive edit, not per frame, so zero staleness beats memoization.
// Callers that want batching do it a layer up.
package snap

import (
	"math"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/pkg/geospatial"
)

// DefaultThresholdMeters applies when the caller does not supply a
// tolerance.
const DefaultThresholdMeters = 10.0

// Resolve scans every structure and every consecutive segment of every
// channel, keeps the single globally nearest candidate, and returns it as
// a snap when its great-circle distance is within thresholdMeters
// (inclusive). Otherwise the result is tagged SnapNone — a normal outcome,
// not an error.
//
// Structures are scanned first and only a strictly smaller distance
// replaces the current best, so a structure beats a channel at exactly
// equal distance. Downstream linking relies on that ordering being stable;
// do not reorder the scans.
//
// The input slices are never mutated; the snapped coordinate in the result
// is a copy, safe for the caller to modify.
func Resolve(query domain.Coordinate, structures []domain.Structure, channels []domain.Channel, thresholdMeters float64) domain.SnapResult {
	bestDist := math.Inf(1)
	best := domain.SnapResult{Kind: domain.SnapNone}

	for i := range structures {
		d := geospatial.Haversine(query, structures[i].Location)
		if d < bestDist {
			loc := structures[i].Location
			bestDist = d
			best = domain.SnapResult{
				Kind:      domain.SnapPoint,
				Snapped:   &loc,
				FeatureID: structures[i].ID,
				DistanceM: d,
			}
		}
	}

	for i := range channels {
		path := channels[i].Path
		for s := 0; s+1 < len(path); s++ {
			candidate := geospatial.ClosestPointOnSegment(query, path[s], path[s+1])
			d := geospatial.Haversine(query, candidate)
			if d < bestDist {
				snapped := candidate
				bestDist = d
				best = domain.SnapResult{
					Kind:      domain.SnapLine,
					Snapped:   &snapped,
					FeatureID: channels[i].ID,
					DistanceM: d,
				}
			}
		}
	}

	if best.Kind == domain.SnapNone || bestDist > thresholdMeters {
		return domain.SnapResult{Kind: domain.SnapNone}
	}
	return best
}
