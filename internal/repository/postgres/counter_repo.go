package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kmalkov/searchgate/internal/model"
)

// CounterRepo implements CounterRepository using PostgreSQL. Rows are
// date-scoped: a row from another day never contributes to today's count.
type CounterRepo struct{ db *DB }

// NewCounterRepo constructs a daily counter repository.
func NewCounterRepo(db *DB) *CounterRepo { return &CounterRepo{db: db} }

// Count returns the stored count for (kind, identity, day), zero when absent.
func (r *CounterRepo) Count(ctx context.Context, kind model.ActionKind, id model.Identity, day string) (int, error) {
	const q = `SELECT count FROM daily_counters WHERE kind=$1 AND identity=$2 AND day=$3`
	var n int
	err := r.db.Pool.QueryRow(ctx, q, string(kind), int64(id), day).Scan(&n)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, nil
	default:
		return 0, err
	}
}

// Increment adds one to (kind, identity, day) and returns the new count.
// The upsert keeps the read-increment race inside the database.
func (r *CounterRepo) Increment(ctx context.Context, kind model.ActionKind, id model.Identity, day string) (int, error) {
	const q = `
INSERT INTO daily_counters (kind, identity, day, count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (kind, identity, day)
DO UPDATE SET count = daily_counters.count + 1
RETURNING count`
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, string(kind), int64(id), day).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// PurgeBefore deletes counter rows older than the given day.
func (r *CounterRepo) PurgeBefore(ctx context.Context, day string) (int64, error) {
	const q = `DELETE FROM daily_counters WHERE day < $1`
	tag, err := r.db.Pool.Exec(ctx, q, day)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResetAll wipes every counter row.
func (r *CounterRepo) ResetAll(ctx context.Context) error {
	const q = `DELETE FROM daily_counters`
	_, err := r.db.Pool.Exec(ctx, q)
	return err
}
