package snap_test

import (
	"math"
	"testing"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/snap"
	"github.com/jmaguas/azenha/internal/pkg/geospatial"
)

var query = domain.Coordinate{Lng: -8.6120, Lat: 41.1580}

func TestResolve_NoFeatureWithinThreshold(t *testing.T) {
	// ~43m away with a 10m threshold: no match.
	structures := []domain.Structure{
		{ID: "mill-1", Location: domain.Coordinate{Lng: -8.6125, Lat: 41.1579}},
	}

	res := snap.Resolve(query, structures, nil, 10)
	if res.Kind != domain.SnapNone {
		t.Fatalf("expected none, got %s at %fm", res.Kind, res.DistanceM)
	}
	if res.Snapped != nil || res.FeatureID != "" {
		t.Errorf("none result must carry no coordinate or feature: %+v", res)
	}
}

func TestResolve_SnapsToStructure(t *testing.T) {
	near := domain.Coordinate{Lng: -8.61201, Lat: 41.15801}
	structures := []domain.Structure{
		{ID: "mill-far", Location: domain.Coordinate{Lng: -8.6125, Lat: 41.1579}},
		{ID: "mill-near", Location: near},
	}

	res := snap.Resolve(query, structures, nil, 10)
	if res.Kind != domain.SnapPoint {
		t.Fatalf("expected point snap, got %s", res.Kind)
	}
	if res.FeatureID != "mill-near" {
		t.Errorf("expected mill-near, got %s", res.FeatureID)
	}
	if res.Snapped == nil || *res.Snapped != near {
		t.Errorf("snapped coordinate must equal the feature's: %+v", res.Snapped)
	}
	if res.DistanceM < 1.0 || res.DistanceM > 1.6 {
		t.Errorf("expected roughly 1.3m, got %f", res.DistanceM)
	}
}

func TestResolve_SnapsToChannelSegment(t *testing.T) {
	// L-shaped channel; the query sits 3m north of the first segment's
	// midpoint. The second segment is ~40m away and must not win.
	channel := domain.Channel{
		ID: "levada-1",
		Path: []domain.Coordinate{
			{Lng: -8.6140, Lat: 41.1580},
			{Lng: -8.6130, Lat: 41.1580},
			{Lng: -8.6130, Lat: 41.1590},
		},
	}
	mid := domain.Coordinate{Lng: -8.6135, Lat: 41.1580}
	q := domain.Coordinate{Lng: -8.6135, Lat: 41.1580 + 3.0/111320.0}

	res := snap.Resolve(q, nil, []domain.Channel{channel}, 10)
	if res.Kind != domain.SnapLine {
		t.Fatalf("expected line snap, got %s", res.Kind)
	}
	if res.FeatureID != "levada-1" {
		t.Errorf("expected levada-1, got %s", res.FeatureID)
	}
	if res.DistanceM < 2.9 || res.DistanceM > 3.1 {
		t.Errorf("expected roughly 3m, got %f", res.DistanceM)
	}
	if res.Snapped == nil {
		t.Fatal("line snap must carry the projected coordinate")
	}
	if d := geospatial.Haversine(*res.Snapped, mid); d > 0.05 {
		t.Errorf("snapped point %v is %fm from the segment midpoint", *res.Snapped, d)
	}
}

// A structure and a channel endpoint at the same spot, equidistant from
// the query: the structure wins. Relinking depends on this staying stable.
func TestResolve_TieBreakPrefersStructure(t *testing.T) {
	shared := domain.Coordinate{Lng: -8.6125, Lat: 41.1580}
	structures := []domain.Structure{{ID: "mill-1", Location: shared}}
	channels := []domain.Channel{{
		ID: "levada-1",
		Path: []domain.Coordinate{
			{Lng: -8.6130, Lat: 41.1580},
			shared, // beyond-the-end queries project exactly here
		},
	}}
	q := domain.Coordinate{Lng: -8.6120, Lat: 41.1580}

	res := snap.Resolve(q, structures, channels, 100)
	if res.Kind != domain.SnapPoint {
		t.Fatalf("expected the structure to win the tie, got %s", res.Kind)
	}
	if res.FeatureID != "mill-1" {
		t.Errorf("expected mill-1, got %s", res.FeatureID)
	}
}

func TestResolve_ThresholdBoundaryInclusive(t *testing.T) {
	loc := domain.Coordinate{Lng: -8.6125, Lat: 41.1579}
	structures := []domain.Structure{{ID: "mill-1", Location: loc}}
	d := geospatial.Haversine(query, loc)

	// Exactly at the threshold: match.
	if res := snap.Resolve(query, structures, nil, d); res.Kind != domain.SnapPoint {
		t.Errorf("distance == threshold must match, got %s", res.Kind)
	}

	// Threshold a hair under the distance: no match.
	if res := snap.Resolve(query, structures, nil, math.Nextafter(d, 0)); res.Kind != domain.SnapNone {
		t.Errorf("threshold below the distance must not match, got %s", res.Kind)
	}
}

func TestResolve_EmptyCatalog(t *testing.T) {
	res := snap.Resolve(query, nil, nil, 10)
	if res.Kind != domain.SnapNone {
		t.Fatalf("expected none for empty catalog, got %s", res.Kind)
	}
}

func TestResolve_DegenerateSegments(t *testing.T) {
	// All vertices coincident: every segment is zero-length. Must not
	// blow up, must still resolve as the distance to that point.
	at := domain.Coordinate{Lng: -8.61201, Lat: 41.15801}
	channels := []domain.Channel{{
		ID:   "levada-degenerate",
		Path: []domain.Coordinate{at, at, at},
	}}

	res := snap.Resolve(query, nil, channels, 10)
	if res.Kind != domain.SnapLine {
		t.Fatalf("expected line snap, got %s", res.Kind)
	}
	if math.IsNaN(res.DistanceM) || math.IsInf(res.DistanceM, 0) {
		t.Fatalf("non-finite distance %f", res.DistanceM)
	}
	if res.Snapped == nil || *res.Snapped != at {
		t.Errorf("expected snap onto the collapsed point, got %+v", res.Snapped)
	}
}

func TestResolve_GlobalMinimumAcrossFeatures(t *testing.T) {
	structures := []domain.Structure{
		{ID: "far", Location: domain.Coordinate{Lng: -8.6125, Lat: 41.1579}},
		{ID: "near", Location: domain.Coordinate{Lng: -8.61201, Lat: 41.15801}},
	}
	channels := []domain.Channel{{
		ID: "levada-1",
		Path: []domain.Coordinate{
			{Lng: -8.6140, Lat: 41.1570},
			{Lng: -8.6130, Lat: 41.1570},
		},
	}}

	res := snap.Resolve(query, structures, channels, 500)
	if res.FeatureID != "near" {
		t.Errorf("expected the globally nearest feature, got %s at %fm", res.FeatureID, res.DistanceM)
	}
}

// The engine must neither mutate its inputs nor alias them in the result.
func TestResolve_DoesNotAliasInputs(t *testing.T) {
	original := domain.Coordinate{Lng: -8.61201, Lat: 41.15801}
	structures := []domain.Structure{{ID: "mill-1", Location: original}}

	res := snap.Resolve(query, structures, nil, 10)
	if res.Snapped == nil {
		t.Fatal("expected a snap")
	}
	if res.Snapped == &structures[0].Location {
		t.Fatal("result aliases the caller's structure")
	}

	res.Snapped.Lng = 0
	res.Snapped.Lat = 0
	if structures[0].Location != original {
		t.Errorf("mutating the result changed the input: %+v", structures[0].Location)
	}
}
