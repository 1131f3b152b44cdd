package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/servicefunnel/store"
)

func (d *DB) CreateLLMUsage(ctx context.Context, create *store.LLMUsage) (*store.LLMUsage, error) {
	fields := []string{"purpose", "model", "input_tokens", "output_tokens", "cost_usd", "latency_ms", "success", "error_kind", "created_ts"}
	args := []any{create.Purpose, create.Model, create.InputTokens, create.OutputTokens, create.CostUSD, create.LatencyMs, create.Success, create.ErrorKind, create.CreatedTs}

	stmt := `INSERT INTO llm_usage (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, fmt.Errorf("failed to create llm_usage: %w", err)
	}
	return create, nil
}

func (d *DB) ListLLMUsage(ctx context.Context, find *store.FindLLMUsage) ([]*store.LLMUsage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.CreatedAfter != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *find.CreatedAfter)
	}
	if find.Purpose != nil {
		where, args = append(where, "purpose = "+placeholder(len(args)+1)), append(args, *find.Purpose)
	}

	query := `SELECT id, purpose, model, input_tokens, output_tokens, cost_usd, latency_ms, success, error_kind, created_ts
		FROM llm_usage WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC, id DESC`
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list llm_usage: %w", err)
	}
	defer rows.Close()

	list := make([]*store.LLMUsage, 0)
	for rows.Next() {
		u := &store.LLMUsage{}
		if err := rows.Scan(&u.ID, &u.Purpose, &u.Model, &u.InputTokens, &u.OutputTokens, &u.CostUSD, &u.LatencyMs, &u.Success, &u.ErrorKind, &u.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan llm_usage: %w", err)
		}
		list = append(list, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate llm_usage: %w", err)
	}
	return list, nil
}
