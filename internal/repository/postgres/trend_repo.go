package postgres

import (
	"context"
	"time"

	"github.com/kmalkov/searchgate/internal/model"
)

// TrendRepo implements TrendRepository using PostgreSQL.
type TrendRepo struct{ db *DB }

// NewTrendRepo constructs a trend repository.
func NewTrendRepo(db *DB) *TrendRepo { return &TrendRepo{db: db} }

// Bump increments a keyword counter, creating it at one.
func (r *TrendRepo) Bump(ctx context.Context, keyword string, now time.Time) error {
	const q = `
INSERT INTO trends (keyword, count, updated_at)
VALUES ($1, 1, $2)
ON CONFLICT (keyword)
DO UPDATE SET count = trends.count + 1, updated_at = EXCLUDED.updated_at`
	_, err := r.db.Pool.Exec(ctx, q, keyword, now)
	return err
}

// Top returns up to limit keywords ordered by count descending.
func (r *TrendRepo) Top(ctx context.Context, limit int) ([]model.TrendEntry, error) {
	const q = `SELECT keyword, count FROM trends ORDER BY count DESC, keyword ASC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TrendEntry
	for rows.Next() {
		var e model.TrendEntry
		if err = rows.Scan(&e.Keyword, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every trend row.
func (r *TrendRepo) Clear(ctx context.Context) error {
	const q = `DELETE FROM trends`
	_, err := r.db.Pool.Exec(ctx, q)
	return err
}
