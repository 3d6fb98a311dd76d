package geospatial

import (
	"math"

	"github.com/jmaguas/azenha/internal/core/domain"
)

// Spherical-earth radius in meters. Haversine on a sphere is not
// geodesically exact, but at the sub-100m tolerances the catalog
// operates at the error is far below GPS noise.
const earthRadiusMeters = 6371000.0

// Haversine calculates the great-circle distance in meters between two
// coordinates. Symmetric, deterministic, zero for identical inputs.
func Haversine(a, b domain.Coordinate) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// BoundingBox returns a coarse box around center sized by radiusMeters.
// Used as a SQL prefilter; plays no part in snapping correctness.
func BoundingBox(center domain.Coordinate, radiusMeters float64) domain.Bounds {
	latDelta := radiusMeters / 111320.0
	lngDelta := radiusMeters / (111320.0 * math.Cos(toRad(center.Lat)))

	return domain.Bounds{
		MinLat: center.Lat - latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLat: center.Lat + latDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// PathBounds returns the tight bounding box of a vertex sequence. An
// empty path yields the zero box.
func PathBounds(path []domain.Coordinate) domain.Bounds {
	if len(path) == 0 {
		return domain.Bounds{}
	}
	b := domain.Bounds{
		MinLat: path[0].Lat, MinLng: path[0].Lng,
		MaxLat: path[0].Lat, MaxLng: path[0].Lng,
	}
	for _, c := range path[1:] {
		b.MinLat = math.Min(b.MinLat, c.Lat)
		b.MinLng = math.Min(b.MinLng, c.Lng)
		b.MaxLat = math.Max(b.MaxLat, c.Lat)
		b.MaxLng = math.Max(b.MaxLng, c.Lng)
	}
	return b
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
