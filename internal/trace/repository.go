package trace

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists trace entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a trace repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends one trace entry.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO trace_entries (id, trace_id, request_id, agent_name, action, details, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.TraceID, e.RequestID, e.AgentName, e.Action, e.Details, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting trace entry: %w", err)
	}
	return nil
}

// Recent returns the newest `limit` entries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, trace_id, request_id, agent_name, action, details, ts
		 FROM trace_entries
		 ORDER BY ts DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing trace entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TraceID, &e.RequestID, &e.AgentName, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning trace entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
