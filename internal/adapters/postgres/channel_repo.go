package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/pkg/geospatial"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
	"github.com/jmaguas/azenha/internal/pkg/wkt"
)

// ChannelRepo implements ports.ChannelRepository. Paths are stored as
// linestring text plus a bounding box maintained at write time, so
// viewport queries stay in SQL while the path itself round-trips through
// the codec.
type ChannelRepo struct {
	db *DB
}

func NewChannelRepo(db *DB) *ChannelRepo { return &ChannelRepo{db: db} }

const channelColumns = `id, name, color, municipality, geom, updated_at`

func (r *ChannelRepo) Upsert(ctx context.Context, c *domain.Channel) error {
	geom, err := wkt.EncodeLineString(c.Path)
	if err != nil {
		return fmt.Errorf("channel %s: %w", c.ID, err)
	}
	box := geospatial.PathBounds(c.Path)
	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO channels (id, name, color, municipality, geom, min_lat, min_lng, max_lat, max_lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, color = EXCLUDED.color, municipality = EXCLUDED.municipality,
		    geom = EXCLUDED.geom, min_lat = EXCLUDED.min_lat, min_lng = EXCLUDED.min_lng,
		    max_lat = EXCLUDED.max_lat, max_lng = EXCLUDED.max_lng, updated_at = now()
	`, c.ID, c.Name, c.Color, c.Municipality, geom,
		box.MinLat, box.MinLng, box.MaxLat, box.MaxLng)
	return err
}

func (r *ChannelRepo) UpsertBatch(ctx context.Context, cs []domain.Channel) error {
	batch := &pgx.Batch{}
	for _, c := range cs {
		geom, err := wkt.EncodeLineString(c.Path)
		if err != nil {
			return fmt.Errorf("channel %s: %w", c.ID, err)
		}
		box := geospatial.PathBounds(c.Path)
		batch.Queue(`
			INSERT INTO channels (id, name, color, municipality, geom, min_lat, min_lng, max_lat, max_lng)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, color = EXCLUDED.color, municipality = EXCLUDED.municipality,
			    geom = EXCLUDED.geom, min_lat = EXCLUDED.min_lat, min_lng = EXCLUDED.min_lng,
			    max_lat = EXCLUDED.max_lat, max_lng = EXCLUDED.max_lng, updated_at = now()
		`, c.ID, c.Name, c.Color, c.Municipality, geom,
			box.MinLat, box.MinLng, box.MaxLat, box.MaxLng)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range cs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func (r *ChannelRepo) GetByID(ctx context.Context, id string) (*domain.Channel, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+channelColumns+` FROM channels WHERE id = $1
	`, id)
	c, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ChannelRepo) List(ctx context.Context, municipality string) ([]domain.Channel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE ($1 = '' OR municipality = $1)
		ORDER BY name, id
	`, municipality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChannels(rows)
}

// ListIntersecting returns channels whose bounding box overlaps b. A box
// overlap is not a path intersection; callers that need exact geometry
// work from the decoded paths.
func (r *ChannelRepo) ListIntersecting(ctx context.Context, b domain.Bounds) ([]domain.Channel, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE max_lat >= $1 AND min_lat <= $2 AND max_lng >= $3 AND min_lng <= $4
		ORDER BY id
	`, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectChannels(rows)
}

func (r *ChannelRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	return err
}

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var c domain.Channel
	var geom string
	if err := row.Scan(&c.ID, &c.Name, &c.Color, &c.Municipality, &geom, &c.UpdatedAt); err != nil {
		return nil, err
	}
	path, err := wkt.DecodeLineString(geom)
	if err != nil {
		metrics.GeometryDecodeFailures.WithLabelValues("channels").Inc()
		return nil, fmt.Errorf("channel %s: %w", c.ID, err)
	}
	c.Path = path
	return &c, nil
}

func collectChannels(rows pgx.Rows) ([]domain.Channel, error) {
	var out []domain.Channel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
