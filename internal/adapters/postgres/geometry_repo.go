package postgres

import (
	"context"

	"github.com/jmaguas/azenha/internal/core/ports"
)

// GeometryRepo implements ports.GeometryRepository. It hands out stored
// geometry text exactly as written, without decoding, so the audit sees
// what the table sees.
type GeometryRepo struct {
	db *DB
}

func NewGeometryRepo(db *DB) *GeometryRepo { return &GeometryRepo{db: db} }

// ListGeometries pages both feature tables in one keyset scan ordered by
// id. Feature ids are unique across tables, so the last returned id is a
// valid cursor for the next page.
func (r *GeometryRepo) ListGeometries(ctx context.Context, afterID string, limit int) ([]ports.GeometryRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, tbl, geom FROM (
			SELECT id, 'structures' AS tbl, geom FROM structures
			UNION ALL
			SELECT id, 'channels' AS tbl, geom FROM channels
		) AS g
		WHERE id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ports.GeometryRow
	for rows.Next() {
		var g ports.GeometryRow
		if err := rows.Scan(&g.ID, &g.Table, &g.Geom); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
