package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnavailable wraps any storage failure on the durable memory record.
// Callers treat it as fatal for the request that triggered the write.
var ErrUnavailable = errors.New("memory: store unavailable")

// Repository defines persistence for the durable user memory record.
// All mutating operations write a single field and bump updated_at; no
// operation ever replaces the whole record.
type Repository interface {
	EnsureExists(ctx context.Context, userID uuid.UUID) error
	GetByUserID(ctx context.Context, userID uuid.UUID) (*UserMemory, error)
	AppendEvaluation(ctx context.Context, userID uuid.UUID, eval EvaluationResult, maxEntries int) error
	AppendSessionDate(ctx context.Context, userID uuid.UUID, date string, maxEntries int) error
	MergeProfile(ctx context.Context, userID uuid.UUID, partial map[string]any) error
	SetStruggles(ctx context.Context, userID uuid.UUID, struggles []Struggle) error
	SetTraits(ctx context.Context, userID uuid.UUID, traits Traits) error
	SetEffort(ctx context.Context, userID uuid.UUID, effort EffortMetrics) error
	SetOnboarding(ctx context.Context, userID uuid.UUID, ob Onboarding) error
}

// PostgresRepository implements Repository on user_memories using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new user memory repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) EnsureExists(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_memories (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("%w: ensuring record for %s: %v", ErrUnavailable, userID, err)
	}
	return nil
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*UserMemory, error) {
	var m UserMemory
	var profile, onboarding, struggles, traits, effort []byte
	var evalHistory, sessionDates []byte

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, profile, onboarding, struggles, traits, effort,
		        evaluation_history, session_dates, created_at, updated_at
		 FROM user_memories
		 WHERE user_id = $1`,
		userID,
	).Scan(&m.UserID, &profile, &onboarding, &struggles, &traits, &effort,
		&evalHistory, &sessionDates, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: getting record for %s: %v", ErrUnavailable, userID, err)
	}

	for _, f := range []struct {
		raw []byte
		out any
	}{
		{profile, &m.Profile},
		{onboarding, &m.Onboarding},
		{struggles, &m.Struggles},
		{traits, &m.Traits},
		{effort, &m.Effort},
		{evalHistory, &m.EvaluationHistory},
		{sessionDates, &m.SessionDates},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.out); err != nil {
			return nil, fmt.Errorf("decoding memory field for %s: %w", userID, err)
		}
	}
	return &m, nil
}

// AppendEvaluation appends one result to the evaluation history and trims it
// to the newest maxEntries in a single statement.
func (r *PostgresRepository) AppendEvaluation(ctx context.Context, userID uuid.UUID, eval EvaluationResult, maxEntries int) error {
	payload, err := json.Marshal([]EvaluationResult{eval})
	if err != nil {
		return fmt.Errorf("encoding evaluation: %w", err)
	}
	return r.appendBounded(ctx, userID, "evaluation_history", payload, maxEntries)
}

// AppendSessionDate appends a YYYY-MM-DD date to session_dates and trims it
// to the newest maxEntries.
func (r *PostgresRepository) AppendSessionDate(ctx context.Context, userID uuid.UUID, date string, maxEntries int) error {
	payload, err := json.Marshal([]string{date})
	if err != nil {
		return fmt.Errorf("encoding session date: %w", err)
	}
	return r.appendBounded(ctx, userID, "session_dates", payload, maxEntries)
}

// appendBounded concatenates payload onto a JSONB array column and keeps only
// the newest maxEntries elements, preserving order.
func (r *PostgresRepository) appendBounded(ctx context.Context, userID uuid.UUID, column string, payload []byte, maxEntries int) error {
	query := fmt.Sprintf(
		`UPDATE user_memories
		 SET %[1]s = (
		     SELECT COALESCE(jsonb_agg(value ORDER BY ord), '[]'::jsonb)
		     FROM (
		         SELECT value, ordinality AS ord
		         FROM jsonb_array_elements(%[1]s || $2::jsonb) WITH ORDINALITY
		         ORDER BY ordinality DESC
		         LIMIT $3
		     ) tail
		 ), updated_at = now()
		 WHERE user_id = $1`, column)

	tag, err := r.pool.Exec(ctx, query, userID, payload, maxEntries)
	if err != nil {
		return fmt.Errorf("%w: appending to %s for %s: %v", ErrUnavailable, column, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no record for %s", ErrUnavailable, userID)
	}
	return nil
}

// MergeProfile shallow-merges the given fields into the stored profile.
func (r *PostgresRepository) MergeProfile(ctx context.Context, userID uuid.UUID, partial map[string]any) error {
	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return r.setField(ctx, userID, "profile", "profile || $2::jsonb", payload)
}

func (r *PostgresRepository) SetStruggles(ctx context.Context, userID uuid.UUID, struggles []Struggle) error {
	payload, err := json.Marshal(struggles)
	if err != nil {
		return fmt.Errorf("encoding struggles: %w", err)
	}
	return r.setField(ctx, userID, "struggles", "$2::jsonb", payload)
}

func (r *PostgresRepository) SetTraits(ctx context.Context, userID uuid.UUID, traits Traits) error {
	payload, err := json.Marshal(traits)
	if err != nil {
		return fmt.Errorf("encoding traits: %w", err)
	}
	return r.setField(ctx, userID, "traits", "$2::jsonb", payload)
}

func (r *PostgresRepository) SetEffort(ctx context.Context, userID uuid.UUID, effort EffortMetrics) error {
	payload, err := json.Marshal(effort)
	if err != nil {
		return fmt.Errorf("encoding effort: %w", err)
	}
	return r.setField(ctx, userID, "effort", "$2::jsonb", payload)
}

func (r *PostgresRepository) SetOnboarding(ctx context.Context, userID uuid.UUID, ob Onboarding) error {
	payload, err := json.Marshal(ob)
	if err != nil {
		return fmt.Errorf("encoding onboarding: %w", err)
	}
	return r.setField(ctx, userID, "onboarding", "$2::jsonb", payload)
}

func (r *PostgresRepository) setField(ctx context.Context, userID uuid.UUID, column, expr string, payload []byte) error {
	query := fmt.Sprintf(
		`UPDATE user_memories SET %s = %s, updated_at = now() WHERE user_id = $1`,
		column, expr)

	tag, err := r.pool.Exec(ctx, query, userID, payload)
	if err != nil {
		return fmt.Errorf("%w: updating %s for %s: %v", ErrUnavailable, column, userID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: no record for %s", ErrUnavailable, userID)
	}
	return nil
}

// Touch is a lightweight connectivity check used by readiness probes.
func (r *PostgresRepository) Touch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.pool.Ping(ctx)
}
