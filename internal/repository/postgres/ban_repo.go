package postgres

import (
	"context"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

// BanRepo implements BanRepository using PostgreSQL.
type BanRepo struct{ db *DB }

// NewBanRepo constructs a ban repository.
func NewBanRepo(db *DB) *BanRepo { return &BanRepo{db: db} }

// Upsert inserts or overwrites a ban record. The newer record wins.
func (r *BanRepo) Upsert(ctx context.Context, rec model.BanRecord) error {
	const q = `
INSERT INTO bans (identity, reason, banned_at, banned_by)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity)
DO UPDATE SET reason=EXCLUDED.reason, banned_at=EXCLUDED.banned_at, banned_by=EXCLUDED.banned_by`
	_, err := r.db.Pool.Exec(ctx, q, int64(rec.Identity), rec.Reason, rec.BannedAt, int64(rec.BannedBy))
	return err
}

// Delete removes a ban record.
func (r *BanRepo) Delete(ctx context.Context, id model.Identity) error {
	const q = `DELETE FROM bans WHERE identity=$1`
	tag, err := r.db.Pool.Exec(ctx, q, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Exists reports whether the identity is banned.
func (r *BanRepo) Exists(ctx context.Context, id model.Identity) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM bans WHERE identity=$1)`
	var banned bool
	if err := r.db.Pool.QueryRow(ctx, q, int64(id)).Scan(&banned); err != nil {
		return false, err
	}
	return banned, nil
}

// List returns all ban records, newest first.
func (r *BanRepo) List(ctx context.Context) ([]model.BanRecord, error) {
	const q = `
SELECT identity, reason, banned_at, banned_by
FROM bans ORDER BY banned_at DESC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BanRecord
	for rows.Next() {
		var (
			rec      model.BanRecord
			identity int64
			by       int64
		)
		if err = rows.Scan(&identity, &rec.Reason, &rec.BannedAt, &by); err != nil {
			return nil, err
		}
		rec.Identity = model.Identity(identity)
		rec.BannedBy = model.Identity(by)
		out = append(out, rec)
	}
	return out, rows.Err()
}
