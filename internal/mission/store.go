package mission

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadCatalog reads the mission catalog from the content store. Called once at
// boot; the resulting registry is read-only for the life of the process, so a
// catalog change requires a restart (keeps the registry lock-free).
func LoadCatalog(ctx context.Context, pool *pgxpool.Pool) (*Registry, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, kind
		FROM missions
		WHERE status = 'published'
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query missions: %w", err)
	}
	defer rows.Close()

	var descriptors []Descriptor
	for rows.Next() {
		var d Descriptor
		var kind string
		if err := rows.Scan(&d.ID, &kind); err != nil {
			return nil, fmt.Errorf("scan mission row: %w", err)
		}
		switch Kind(kind) {
		case Standalone, Instructed:
			d.Kind = Kind(kind)
		default:
			return nil, fmt.Errorf("mission %s: unknown kind %q", d.ID, kind)
		}
		descriptors = append(descriptors, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read missions: %w", err)
	}
	if len(descriptors) == 0 {
		return nil, fmt.Errorf("missions table is empty")
	}

	return NewRegistry(descriptors), nil
}
