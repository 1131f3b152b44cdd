package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hrygo/servicefunnel/store"
)

func (d *DB) GetDialogMemory(ctx context.Context, dialogID string) (*store.DialogMemory, error) {
	m := &store.DialogMemory{}
	err := d.db.QueryRowContext(ctx,
		`SELECT dialog_id, payload, created_ts, updated_ts FROM dialog_memory WHERE dialog_id = `+placeholder(1),
		dialogID,
	).Scan(&m.DialogID, &m.Payload, &m.CreatedTs, &m.UpdatedTs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dialog_memory: %w", err)
	}
	return m, nil
}

func (d *DB) UpsertDialogMemory(ctx context.Context, upsert *store.DialogMemory) (*store.DialogMemory, error) {
	stmt := `INSERT INTO dialog_memory (dialog_id, payload, created_ts, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (dialog_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts`
	if err := d.db.QueryRowContext(ctx, stmt, upsert.DialogID, upsert.Payload, upsert.CreatedTs, upsert.UpdatedTs).Scan(&upsert.CreatedTs); err != nil {
		return nil, fmt.Errorf("failed to upsert dialog_memory: %w", err)
	}
	return upsert, nil
}

func (d *DB) DeleteDialogMemory(ctx context.Context, delete *store.DeleteDialogMemory) (int64, error) {
	where, args := []string{}, []any{}
	if delete.DialogID != nil {
		where, args = append(where, "dialog_id = "+placeholder(len(args)+1)), append(args, *delete.DialogID)
	}
	if delete.UpdatedBefore != nil {
		where, args = append(where, "updated_ts < "+placeholder(len(args)+1)), append(args, *delete.UpdatedBefore)
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("refusing to delete dialog_memory without a condition")
	}

	result, err := d.db.ExecContext(ctx, `DELETE FROM dialog_memory WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete dialog_memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
