package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
	"github.com/jmaguas/azenha/internal/pkg/geospatial"
	"github.com/jmaguas/azenha/internal/pkg/metrics"
	"github.com/jmaguas/azenha/internal/pkg/wkt"
)

// StructureRepo implements ports.StructureRepository. The geom text column
// is the record of truth for the location and is decoded on every read;
// the lat/lng columns are derived at write time and exist only for SQL
// prefilters. A row whose geom no longer decodes fails the read loudly,
// which is what the geometry audit is for.
type StructureRepo struct {
	db *DB
}

func NewStructureRepo(db *DB) *StructureRepo { return &StructureRepo{db: db} }

const structureColumns = `id, name, kind, geom, COALESCE(channel_id, ''), municipality, notes, updated_at`

func (r *StructureRepo) Upsert(ctx context.Context, s *domain.Structure) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO structures (id, name, kind, geom, lat, lng, channel_id, municipality, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, kind = EXCLUDED.kind, geom = EXCLUDED.geom,
		    lat = EXCLUDED.lat, lng = EXCLUDED.lng, channel_id = EXCLUDED.channel_id,
		    municipality = EXCLUDED.municipality, notes = EXCLUDED.notes, updated_at = now()
	`, s.ID, s.Name, string(s.Kind), wkt.EncodePoint(s.Location),
		s.Location.Lat, s.Location.Lng, nilIfEmpty(s.ChannelID), s.Municipality, s.Notes)
	return err
}

func (r *StructureRepo) UpsertBatch(ctx context.Context, ss []domain.Structure) error {
	batch := &pgx.Batch{}
	for _, s := range ss {
		batch.Queue(`
			INSERT INTO structures (id, name, kind, geom, lat, lng, channel_id, municipality, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, kind = EXCLUDED.kind, geom = EXCLUDED.geom,
			    lat = EXCLUDED.lat, lng = EXCLUDED.lng, channel_id = EXCLUDED.channel_id,
			    municipality = EXCLUDED.municipality, notes = EXCLUDED.notes, updated_at = now()
		`, s.ID, s.Name, string(s.Kind), wkt.EncodePoint(s.Location),
			s.Location.Lat, s.Location.Lng, nilIfEmpty(s.ChannelID), s.Municipality, s.Notes)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ss {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

func (r *StructureRepo) GetByID(ctx context.Context, id string) (*domain.Structure, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT `+structureColumns+` FROM structures WHERE id = $1
	`, id)
	s, err := scanStructure(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *StructureRepo) List(ctx context.Context, f ports.StructureFilter) ([]domain.Structure, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+structureColumns+`
		FROM structures
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR municipality = $2)
		  AND ($3 = '' OR channel_id = $3)
		ORDER BY name, id
	`, string(f.Kind), f.Municipality, f.ChannelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStructures(rows)
}

// FindNearby narrows with the lat/lng box in SQL, then ranks by exact
// sphere distance in Go. The box over-selects near the poles; the
// distance cut below keeps the result honest.
func (r *StructureRepo) FindNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64, limit int) ([]domain.Structure, error) {
	box := geospatial.BoundingBox(center, radiusMeters)
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+structureColumns+`
		FROM structures
		WHERE lat BETWEEN $1 AND $2 AND lng BETWEEN $3 AND $4
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Structure
	for rows.Next() {
		s, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		d := geospatial.Haversine(center, s.Location)
		if d > radiusMeters {
			continue
		}
		s.Distance = &d
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *StructureRepo) ListUnlinked(ctx context.Context, limit int) ([]domain.Structure, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+structureColumns+`
		FROM structures
		WHERE channel_id IS NULL
		ORDER BY id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStructures(rows)
}

func (r *StructureRepo) SetChannel(ctx context.Context, id, channelID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE structures SET channel_id = $2, updated_at = now() WHERE id = $1
	`, id, nilIfEmpty(channelID))
	return err
}

func (r *StructureRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM structures WHERE id = $1`, id)
	return err
}

func (r *StructureRepo) CountByMunicipality(ctx context.Context, municipality string) ([]domain.KindCount, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT kind, count(*)
		FROM structures
		WHERE municipality = $1
		GROUP BY kind
		ORDER BY kind
	`, municipality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.KindCount
	for rows.Next() {
		var kc domain.KindCount
		if err := rows.Scan(&kc.Kind, &kc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}

// scanStructure reads one structureColumns row and decodes the stored
// geometry. pgx.Rows satisfies pgx.Row, so both query paths share it.
func scanStructure(row pgx.Row) (*domain.Structure, error) {
	var s domain.Structure
	var geom string
	if err := row.Scan(&s.ID, &s.Name, &s.Kind, &geom,
		&s.ChannelID, &s.Municipality, &s.Notes, &s.UpdatedAt); err != nil {
		return nil, err
	}
	loc, err := wkt.DecodePoint(geom)
	if err != nil {
		metrics.GeometryDecodeFailures.WithLabelValues("structures").Inc()
		return nil, fmt.Errorf("structure %s: %w", s.ID, err)
	}
	s.Location = loc
	return &s, nil
}

func collectStructures(rows pgx.Rows) ([]domain.Structure, error) {
	var out []domain.Structure
	for rows.Next() {
		s, err := scanStructure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
