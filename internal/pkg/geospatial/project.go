package geospatial

import (
	"math"

	"github.com/jmaguas/azenha/internal/core/domain"
)

// Squared planar length (degrees²) below which a segment is treated as a
// single point. Roughly a tenth of a millimeter of real distance, far
// below survey precision, and it keeps the projection division safe.
const degenerateSegmentSq = 1e-18

// ClosestPointOnSegment projects p onto the segment ab and returns the
// nearest coordinate ON the segment, never on its infinite extension.
//
// The projection runs in an equirectangular plane local to the segment:
// longitudes are scaled by cos(mean latitude) so an east-west degree
// weighs the same as a north-south one. The clamped parameter is then
// mapped back onto the original degree space. At the city-block scales
// snapping operates on, the planar error is negligible; callers measure
// the returned point with Haversine, so the distance itself is always
// great-circle. The approximation degrades at continental scale — known
// limitation, acceptable here.
func ClosestPointOnSegment(p, a, b domain.Coordinate) domain.Coordinate {
	latScale := math.Cos(toRad((a.Lat + b.Lat) / 2))

	ax, ay := a.Lng*latScale, a.Lat
	bx, by := b.Lng*latScale, b.Lat
	px, py := p.Lng*latScale, p.Lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq < degenerateSegmentSq {
		// Coincident endpoints: the segment is a point.
		return a
	}

	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}

	return domain.Coordinate{
		Lng: a.Lng + t*(b.Lng-a.Lng),
		Lat: a.Lat + t*(b.Lat-a.Lat),
	}
}
