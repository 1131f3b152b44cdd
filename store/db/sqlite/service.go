package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/servicefunnel/store"
)

func (d *DB) ListServices(ctx context.Context, find *store.FindService) ([]*store.Service, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.Code != nil {
		where, args = append(where, "code = "+placeholder(len(args)+1)), append(args, *find.Code)
	}
	if find.ActiveOnly {
		where = append(where, "active = 1")
	}

	query := `SELECT id, code, name, description, incident_type, category, location_type, tags, active, created_ts, updated_ts
		FROM service WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id ASC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Service, 0)
	for rows.Next() {
		s := &store.Service{}
		var tags string
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Description, &s.IncidentType, &s.Category, &s.LocationType, &tags, &s.Active, &s.CreatedTs, &s.UpdatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		s.Tags = store.DecodeTags(tags)
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}
	return list, nil
}

func (d *DB) UpsertService(ctx context.Context, upsert *store.Service) (*store.Service, error) {
	fields := []string{"code", "name", "description", "incident_type", "category", "location_type", "tags", "active", "updated_ts"}
	args := []any{upsert.Code, upsert.Name, upsert.Description, upsert.IncidentType, upsert.Category, upsert.LocationType, store.EncodeTags(upsert.Tags), upsert.Active, upsert.UpdatedTs}

	stmt := `INSERT INTO service (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			incident_type = EXCLUDED.incident_type,
			category = EXCLUDED.category,
			location_type = EXCLUDED.location_type,
			tags = EXCLUDED.tags,
			active = EXCLUDED.active,
			updated_ts = EXCLUDED.updated_ts
		RETURNING id, created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&upsert.ID, &upsert.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert service: %w", err)
	}
	return upsert, nil
}
