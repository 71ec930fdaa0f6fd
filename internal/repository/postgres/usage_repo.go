package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

// keyword trail bound per identity.
const maxKeywordTrail = 50

// UsageRepo implements UsageRepository using PostgreSQL.
type UsageRepo struct{ db *DB }

// NewUsageRepo constructs a usage repository.
func NewUsageRepo(db *DB) *UsageRepo { return &UsageRepo{db: db} }

// Touch upserts activity timestamps and records the search keyword trail.
func (r *UsageRepo) Touch(ctx context.Context, id model.Identity, action model.ActionKind, keyword string, now time.Time) error {
	const upsert = `
INSERT INTO user_usage (identity, first_seen, last_active, total_searches)
VALUES ($1, $2, $2, CASE WHEN $3 THEN 1 ELSE 0 END)
ON CONFLICT (identity)
DO UPDATE SET
  last_active = EXCLUDED.last_active,
  total_searches = user_usage.total_searches + CASE WHEN $3 THEN 1 ELSE 0 END`
	isSearch := action == model.ActionSearch
	if _, err := r.db.Pool.Exec(ctx, upsert, int64(id), now, isSearch); err != nil {
		return err
	}
	if !isSearch || keyword == "" {
		return nil
	}

	const insert = `INSERT INTO usage_keywords (identity, keyword, at) VALUES ($1, $2, $3)`
	if _, err := r.db.Pool.Exec(ctx, insert, int64(id), keyword, now); err != nil {
		return err
	}

	// Trim the trail in SQL so the table stays bounded per identity.
	const trim = `
DELETE FROM usage_keywords
WHERE identity=$1 AND id NOT IN (
  SELECT id FROM usage_keywords WHERE identity=$1 ORDER BY at DESC, id DESC LIMIT $2
)`
	_, err := r.db.Pool.Exec(ctx, trim, int64(id), maxKeywordTrail)
	return err
}

// Get loads the usage summary with recent keywords, newest first.
func (r *UsageRepo) Get(ctx context.Context, id model.Identity) (*model.UserUsage, error) {
	const q = `
SELECT identity, first_seen, last_active, total_searches
FROM user_usage WHERE identity=$1`
	var (
		u        model.UserUsage
		identity int64
	)
	err := r.db.Pool.QueryRow(ctx, q, int64(id)).Scan(&identity, &u.FirstSeen, &u.LastActive, &u.TotalSearches)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	u.Identity = model.Identity(identity)

	const kw = `
SELECT keyword, at FROM usage_keywords
WHERE identity=$1 ORDER BY at DESC, id DESC LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, kw, int64(id), maxKeywordTrail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev model.KeywordEvent
		if err = rows.Scan(&ev.Keyword, &ev.At); err != nil {
			return nil, err
		}
		u.RecentKeywords = append(u.RecentKeywords, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}
