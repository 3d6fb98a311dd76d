package domain

import (
	"errors"
	"time"
)

// StructureKind classifies a catalogued structure.
type StructureKind string

const (
	KindMill   StructureKind = "mill"
	KindPool   StructureKind = "pool"
	KindIntake StructureKind = "intake"
	KindWeir   StructureKind = "weir"
)

// Valid reports whether k is one of the catalogued kinds.
func (k StructureKind) Valid() bool {
	switch k {
	case KindMill, KindPool, KindIntake, KindWeir:
		return true
	}
	return false
}

// Structure is a single-location heritage record (mill, pool, intake, weir).
// Its location is replaced whole on update, never partially mutated.
type Structure struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         StructureKind `json:"kind"`
	Location     Coordinate    `json:"location"`
	ChannelID    string        `json:"channel_id,omitempty"` // set when the location snapped onto a channel
	Municipality string        `json:"municipality,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Distance     *float64      `json:"distance,omitempty"` // computed field
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ErrPathTooShort rejects channel geometry with fewer than two coordinates.
var ErrPathTooShort = errors.New("channel path requires at least 2 coordinates")

// Channel is an open polyline water course (levada, millrace). The path is
// an ordered vertex sequence with no implicit closing segment. Color is a
// rendering attribute only.
type Channel struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Color        string       `json:"color"`
	Municipality string       `json:"municipality,omitempty"`
	Path         []Coordinate `json:"path"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewChannel validates the path before a channel reaches the engine or
// storage. A path shorter than two vertices is a precondition violation
// here, not something the resolver guards against. Coincident consecutive
// vertices are allowed; the engine treats the zero-length segments they
// form as single points.
func NewChannel(id, name, color string, path []Coordinate) (*Channel, error) {
	if len(path) < 2 {
		return nil, ErrPathTooShort
	}
	return &Channel{ID: id, Name: name, Color: color, Path: path}, nil
}

// Segments returns the number of consecutive segments in the path.
func (c *Channel) Segments() int {
	if len(c.Path) < 2 {
		return 0
	}
	return len(c.Path) - 1
}

// SnapKind tags which feature type a snap resolution matched.
type SnapKind string

const (
	SnapPoint SnapKind = "point"
	SnapLine  SnapKind = "line"
	SnapNone  SnapKind = "none"
)

// SnapResult is the outcome of resolving a survey fix against the catalog.
// Ephemeral: the caller consumes it to decide the coordinate it stores and
// the channel link it sets; it is never persisted.
type SnapResult struct {
	Kind      SnapKind    `json:"type"`
	Snapped   *Coordinate `json:"snapped,omitempty"`
	FeatureID string      `json:"feature_id,omitempty"`
	DistanceM float64     `json:"distance_m"`
}

// SnapEvent pairs a resolved snap with the query that produced it, for the
// catalog.snap.resolved subject.
type SnapEvent struct {
	Query  Coordinate `json:"query"`
	Result SnapResult `json:"result"`
	Time   time.Time  `json:"time"`
}

// KindCount is a per-kind tally inside municipality stats.
type KindCount struct {
	Kind  StructureKind `json:"kind"`
	Count int           `json:"count"`
}

// MunicipalityStats summarizes the catalog for one municipality.
type MunicipalityStats struct {
	Municipality string      `json:"municipality"`
	Structures   int         `json:"structures"`
	Channels     int         `json:"channels"`
	ByKind       []KindCount `json:"by_kind"`
}

// AuditReport summarizes one geometry audit run.
type AuditReport struct {
	CheckedStructures int       `json:"checked_structures"`
	CheckedChannels   int       `json:"checked_channels"`
	MalformedIDs      []string  `json:"malformed_ids,omitempty"`
	Relinked          int       `json:"relinked"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}
