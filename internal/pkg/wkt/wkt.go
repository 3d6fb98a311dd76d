// Package wkt converts between in-memory coordinates and the textual
// geometry forms the catalog persists: POINT(lng lat) and
// LINESTRING(lng1 lat1, lng2 lat2, ...).
//
// Encoding preserves full float64 precision and always uses '.' as the
// decimal separator. Decoding is strict: input that does not match the
// expected form is an error, never a silently-empty result, because
// malformed stored geometry is a data-corruption signal.
package wkt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmaguas/azenha/internal/core/domain"
)

var (
	// ErrMalformedGeometry marks decode input that does not match the
	// expected textual form.
	ErrMalformedGeometry = errors.New("malformed geometry")

	// ErrInvalidGeometry marks an encode precondition violation, such as
	// a linestring with fewer than two coordinates.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// EncodePoint renders c as POINT(lng lat), longitude first.
func EncodePoint(c domain.Coordinate) string {
	return "POINT(" + formatPair(c) + ")"
}

// DecodePoint parses POINT(lng lat). Either number may carry a leading
// minus sign.
func DecodePoint(s string) (domain.Coordinate, error) {
	body, ok := stripTag(s, "POINT")
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: %q is not a POINT", ErrMalformedGeometry, s)
	}
	return parsePair(body)
}

// EncodeLineString renders path as LINESTRING(lng1 lat1, lng2 lat2, ...).
// Pairs are joined with ", ". Fewer than two coordinates is an
// ErrInvalidGeometry precondition violation caught before any I/O.
func EncodeLineString(path []domain.Coordinate) (string, error) {
	if len(path) < 2 {
		return "", fmt.Errorf("%w: linestring requires at least 2 coordinates, got %d", ErrInvalidGeometry, len(path))
	}
	var sb strings.Builder
	sb.WriteString("LINESTRING(")
	for i, c := range path {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatPair(c))
	}
	sb.WriteString(")")
	return sb.String(), nil
}

// DecodeLineString parses LINESTRING(lng1 lat1, ...): split on commas,
// then whitespace within each pair. Any pair that is not two finite
// numbers fails the whole decode, and so does input that is not a
// LINESTRING at all or carries fewer than two pairs — strict on both
// axes, matching DecodePoint. (An earlier revision returned an empty
// path on outer-pattern mismatch, which let corrupted rows pass as
// "no geometry".)
func DecodeLineString(s string) ([]domain.Coordinate, error) {
	body, ok := stripTag(s, "LINESTRING")
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a LINESTRING", ErrMalformedGeometry, s)
	}
	raw := strings.Split(body, ",")
	path := make([]domain.Coordinate, 0, len(raw))
	for _, pair := range raw {
		c, err := parsePair(pair)
		if err != nil {
			return nil, err
		}
		path = append(path, c)
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("%w: linestring carries %d coordinate pair(s), need at least 2", ErrMalformedGeometry, len(path))
	}
	return path, nil
}

// formatPair emits the shortest decimal text that parses back to the
// exact same float64 values, longitude first.
func formatPair(c domain.Coordinate) string {
	return strconv.FormatFloat(c.Lng, 'f', -1, 64) + " " + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}

// stripTag peels "TAG( ... )" and returns the inner body. Tag match is
// exact-case: the codec only ever writes uppercase, so anything else in
// storage did not come from us.
func stripTag(s, tag string) (string, bool) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, tag)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

func parsePair(s string) (domain.Coordinate, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return domain.Coordinate{}, fmt.Errorf("%w: expected \"lng lat\", got %q", ErrMalformedGeometry, strings.TrimSpace(s))
	}
	lng, err := parseFinite(fields[0])
	if err != nil {
		return domain.Coordinate{}, err
	}
	lat, err := parseFinite(fields[1])
	if err != nil {
		return domain.Coordinate{}, err
	}
	return domain.Coordinate{Lng: lng, Lat: lat}, nil
}

func parseFinite(tok string) (float64, error) {
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrMalformedGeometry, tok)
	}
	return v, nil
}
