package domain_test

import (
	"errors"
	"testing"

	"github.com/jmaguas/azenha/internal/core/domain"
)

func TestNewChannel_RejectsShortPath(t *testing.T) {
	for _, path := range [][]domain.Coordinate{nil, {}, {{Lng: -8.6125, Lat: 41.1579}}} {
		_, err := domain.NewChannel("c1", "Levada do Rio Tinto", "1E6091", path)
		if !errors.Is(err, domain.ErrPathTooShort) {
			t.Errorf("expected ErrPathTooShort for %d vertices, got %v", len(path), err)
		}
	}
}

func TestNewChannel_AcceptsDuplicateVertices(t *testing.T) {
	v := domain.Coordinate{Lng: -8.6125, Lat: 41.1579}
	ch, err := domain.NewChannel("c1", "Levada do Rio Tinto", "1E6091", []domain.Coordinate{v, v})
	if err != nil {
		t.Fatalf("coincident vertices must construct: %v", err)
	}
	if ch.Segments() != 1 {
		t.Errorf("expected 1 segment, got %d", ch.Segments())
	}
}

func TestStructureKind_Valid(t *testing.T) {
	for _, k := range []domain.StructureKind{domain.KindMill, domain.KindPool, domain.KindIntake, domain.KindWeir} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if domain.StructureKind("castle").Valid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestCoordinate_Valid(t *testing.T) {
	good := []domain.Coordinate{
		{Lng: -8.6125, Lat: 41.1579},
		{Lng: -180, Lat: -90},
		{Lng: 180, Lat: 90},
	}
	for _, c := range good {
		if !c.Valid() {
			t.Errorf("%v should be valid", c)
		}
	}
	bad := []domain.Coordinate{
		{Lng: -180.1, Lat: 0},
		{Lng: 0, Lat: 90.5},
	}
	for _, c := range bad {
		if c.Valid() {
			t.Errorf("%v should be invalid", c)
		}
	}
}
