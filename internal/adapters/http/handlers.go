package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
	"github.com/jmaguas/azenha/internal/pkg/wkt"
)

// CatalogStats holds row counts for the catalog tables.
type CatalogStats struct {
	Structures int    `json:"structures"`
	Channels   int    `json:"channels"`
	Linked     int    `json:"linked_structures"`
	LastChange string `json:"last_change,omitempty"`
}

// CatalogStatsHandler returns row counts from the catalog tables.
func CatalogStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.DB == nil {
			return errInternal(c, "database not available")
		}

		var stats CatalogStats
		row := deps.DB.Pool.QueryRow(c.Context(), `
			SELECT
				(SELECT count(*) FROM structures),
				(SELECT count(*) FROM channels),
				(SELECT count(*) FROM structures WHERE channel_id IS NOT NULL),
				COALESCE((SELECT max(updated_at)::text FROM structures), '')
		`)
		if err := row.Scan(&stats.Structures, &stats.Channels,
			&stats.Linked, &stats.LastChange); err != nil {
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(stats)
	}
}

// structurePayload is the write body for structures. Location is a
// pointer so an absent field is distinguishable from (0, 0).
type structurePayload struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Kind         domain.StructureKind `json:"kind"`
	Location     *domain.Coordinate   `json:"location"`
	ChannelID    string               `json:"channel_id"`
	Municipality string               `json:"municipality"`
	Notes        string               `json:"notes"`
	ThresholdM   float64              `json:"threshold_m"`
}

// ListStructuresHandler returns structures matching the optional kind,
// municipality and channel_id filters.
func ListStructuresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := ports.StructureFilter{
			Kind:         domain.StructureKind(c.Query("kind")),
			Municipality: c.Query("municipality"),
			ChannelID:    c.Query("channel_id"),
		}
		if filter.Kind != "" && !filter.Kind.Valid() {
			return errBadRequest(c, "unknown structure kind "+string(filter.Kind))
		}

		structures, err := deps.Structures.List(c.Context(), filter)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		offset, limit := pageWindow(c)
		pg := Pagination{Offset: offset, Limit: limit, Total: len(structures)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: pageSlice(structures, offset, limit), Pagination: pg})
	}
}

// NearbyStructuresHandler returns structures within a radius of a
// point, nearest first.
func NearbyStructuresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", 0)
		lng := c.QueryFloat("lng", 0)
		radius := c.QueryFloat("radius", 500)
		limit := c.QueryInt("limit", 50)

		if c.Query("lat") == "" || c.Query("lng") == "" {
			return errBadRequest(c, "lat and lng are required")
		}
		center := domain.Coordinate{Lng: lng, Lat: lat}
		if !center.Valid() {
			return errBadRequest(c, "lat and lng are outside the WGS 84 domain")
		}
		if radius <= 0 || radius > 10000 {
			return errBadRequest(c, "radius must be between 1 and 10000 meters")
		}
		if limit <= 0 || limit > 50 {
			limit = 50
		}

		structures, err := deps.Structures.FindNearby(c.Context(), center, radius, limit)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(structures)
	}
}

// GetStructureHandler returns a single structure by ID.
func GetStructureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "structure id is required")
		}
		st, err := deps.Structures.GetByID(c.Context(), id)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		if st == nil {
			return errNotFound(c, "structure not found")
		}
		return c.JSON(st)
	}
}

// CreateStructureHandler registers a new structure. The submitted
// location runs through snap resolution before the row is stored, so
// the response carries both the stored structure and the resolution
// that produced it.
func CreateStructureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body structurePayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.Location == nil {
			return errBadRequest(c, "location is required")
		}

		st := &domain.Structure{
			ID:           body.ID,
			Name:         body.Name,
			Kind:         body.Kind,
			Location:     *body.Location,
			ChannelID:    body.ChannelID,
			Municipality: body.Municipality,
			Notes:        body.Notes,
		}
		if st.ID == "" {
			st.ID = newFeatureID("st")
		}

		res, err := deps.Structures.Create(c.Context(), st, threshold(deps, body.ThresholdM))
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errBadRequest(c, err.Error())
		}

		return c.Status(201).JSON(fiber.Map{
			"structure": st,
			"snap":      res,
		})
	}
}

// UpdateStructureHandler replaces a structure's fields. The moved
// location is re-resolved with the structure itself excluded from the
// scan.
func UpdateStructureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "structure id is required")
		}
		var body structurePayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.Location == nil {
			return errBadRequest(c, "location is required")
		}

		st := &domain.Structure{
			ID:           id,
			Name:         body.Name,
			Kind:         body.Kind,
			Location:     *body.Location,
			ChannelID:    body.ChannelID,
			Municipality: body.Municipality,
			Notes:        body.Notes,
		}

		res, err := deps.Structures.Update(c.Context(), st, threshold(deps, body.ThresholdM))
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errBadRequest(c, err.Error())
		}
		if res == nil {
			return errNotFound(c, "structure not found")
		}

		return c.JSON(fiber.Map{
			"structure": st,
			"snap":      res,
		})
	}
}

// DeleteStructureHandler removes a structure.
func DeleteStructureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "structure id is required")
		}
		if err := deps.Structures.Delete(c.Context(), id); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// channelPayload is the write body for channels.
type channelPayload struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Color        string              `json:"color"`
	Municipality string              `json:"municipality"`
	Path         []domain.Coordinate `json:"path"`
}

// ListChannelsHandler returns channels, optionally filtered by
// municipality.
func ListChannelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		channels, err := deps.Channels.List(c.Context(), c.Query("municipality"))
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		offset, limit := pageWindow(c)
		pg := Pagination{Offset: offset, Limit: limit, Total: len(channels)}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: pageSlice(channels, offset, limit), Pagination: pg})
	}
}

// ViewportChannelsHandler returns channels whose bounding box overlaps
// the requested viewport. Map frontends call this on every pan, so the
// query stays a box scan over the derived bbox columns.
func ViewportChannelsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, q := range []string{"min_lat", "min_lng", "max_lat", "max_lng"} {
			if c.Query(q) == "" {
				return errBadRequest(c, "min_lat, min_lng, max_lat and max_lng are required")
			}
		}
		b := domain.Bounds{
			MinLat: c.QueryFloat("min_lat", 0),
			MinLng: c.QueryFloat("min_lng", 0),
			MaxLat: c.QueryFloat("max_lat", 0),
			MaxLng: c.QueryFloat("max_lng", 0),
		}
		sw := domain.Coordinate{Lng: b.MinLng, Lat: b.MinLat}
		ne := domain.Coordinate{Lng: b.MaxLng, Lat: b.MaxLat}
		if !sw.Valid() || !ne.Valid() {
			return errBadRequest(c, "viewport corners are outside the WGS 84 domain")
		}
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return errBadRequest(c, "viewport is inverted: min corner must be south-west of max")
		}

		channels, err := deps.Channels.ListInViewport(c.Context(), b)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(channels)
	}
}

// GetChannelHandler returns a single channel by ID.
func GetChannelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "channel id is required")
		}
		ch, err := deps.Channels.GetByID(c.Context(), id)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		if ch == nil {
			return errNotFound(c, "channel not found")
		}
		return c.JSON(ch)
	}
}

// CreateChannelHandler registers a new channel polyline.
func CreateChannelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body channelPayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.ID == "" {
			body.ID = newFeatureID("ch")
		}

		ch, err := deps.Channels.Create(c.Context(), body.ID, body.Name, body.Color, body.Municipality, body.Path)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.Status(201).JSON(ch)
	}
}

// UpdateChannelHandler replaces a channel's fields and path.
func UpdateChannelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "channel id is required")
		}

		existing, err := deps.Channels.GetByID(c.Context(), id)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		if existing == nil {
			return errNotFound(c, "channel not found")
		}

		var body channelPayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		ch := &domain.Channel{
			ID:           id,
			Name:         body.Name,
			Color:        body.Color,
			Municipality: body.Municipality,
			Path:         body.Path,
		}
		if err := deps.Channels.Update(c.Context(), ch); err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.JSON(ch)
	}
}

// DeleteChannelHandler removes a channel. Structures linked to it keep
// existing; the database clears their channel link.
func DeleteChannelHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "channel id is required")
		}
		if err := deps.Channels.Delete(c.Context(), id); err != nil {
			return errInternal(c, err.Error())
		}
		return c.SendStatus(204)
	}
}

// ChannelStructuresHandler returns the structures linked to a channel.
func ChannelStructuresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "channel id is required")
		}

		ch, err := deps.Channels.GetByID(c.Context(), id)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		if ch == nil {
			return errNotFound(c, "channel not found")
		}

		structures, err := deps.Structures.List(c.Context(), ports.StructureFilter{ChannelID: id})
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(structures)
	}
}

// snapPayload is the body for a snap resolution request.
type snapPayload struct {
	Location   *domain.Coordinate `json:"location"`
	ThresholdM float64            `json:"threshold_m"`
}

// SnapResolveHandler resolves a survey fix against the catalog without
// writing anything. A miss comes back as a normal 200 with type "none".
func SnapResolveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body snapPayload
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.Location == nil {
			return errBadRequest(c, "location is required")
		}
		if !body.Location.Valid() {
			return errBadRequest(c, "location is outside the WGS 84 domain")
		}

		start := time.Now()
		res, err := deps.Snap.Resolve(c.Context(), *body.Location, threshold(deps, body.ThresholdM))
		metrics.SnapResolutionDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		metrics.SnapResolutions.WithLabelValues(string(res.Kind)).Inc()
		RequestLogger(c.UserContext()).Debug("snap resolved",
			"outcome", string(res.Kind), "feature_id", res.FeatureID, "distance_m", res.DistanceM)

		return c.JSON(res)
	}
}

// ExportGeoJSONHandler streams the catalog as a GeoJSON
// FeatureCollection, channels before structures so map layers stack
// lines under points.
func ExportGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := deps.Export.BuildGeoJSON(c.Context(), c.Query("municipality"))
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		RequestLogger(c.UserContext()).Debug("geojson export served", "bytes", len(data))

		c.Set("Content-Type", "application/geo+json")
		c.Set("Cache-Control", "public, max-age=3600")
		return c.Send(data)
	}
}

// MunicipalityStatsHandler tallies the catalog for one municipality.
func MunicipalityStatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, err := url.PathUnescape(c.Params("name"))
		if err != nil || name == "" {
			return errBadRequest(c, "municipality is required")
		}

		byKind, err := deps.Structures.CountByMunicipality(c.Context(), name)
		if err != nil {
			return errInternal(c, err.Error())
		}
		channels, err := deps.Channels.List(c.Context(), name)
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		total := 0
		for _, kc := range byKind {
			total += kc.Count
		}

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(domain.MunicipalityStats{
			Municipality: name,
			Structures:   total,
			Channels:     len(channels),
			ByKind:       byKind,
		})
	}
}

// MillsHandler is the legacy mills listing, kept while old map clients
// migrate to /v1/structures?kind=mill. The deprecation middleware
// stamps the sunset headers.
func MillsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		mills, err := deps.Structures.List(c.Context(), ports.StructureFilter{Kind: domain.KindMill})
		if err != nil {
			if errors.Is(err, wkt.ErrMalformedGeometry) {
				return errGeometry(c, err.Error())
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(mills)
	}
}

// threshold picks the request override or the configured default. The
// engine applies its own default when both are zero.
func threshold(deps *Dependencies, bodyVal float64) float64 {
	if bodyVal > 0 {
		return bodyVal
	}
	return deps.SnapThreshold
}

// newFeatureID mints a short random identifier with a type prefix.
// Prefixes keep IDs unique across the structure and channel tables.
func newFeatureID(prefix string) string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	return prefix + "-" + hex.EncodeToString(b)
}
