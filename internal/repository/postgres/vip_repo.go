package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

// VipRepo implements VipRepository using PostgreSQL.
type VipRepo struct{ db *DB }

// NewVipRepo constructs a VIP grant repository.
func NewVipRepo(db *DB) *VipRepo { return &VipRepo{db: db} }

// Upsert inserts or replaces the grant for an identity.
func (r *VipRepo) Upsert(ctx context.Context, grant model.VipGrant) error {
	const q = `
INSERT INTO vip_grants (identity, expires_at, granted_at, duration_days)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity)
DO UPDATE SET expires_at=EXCLUDED.expires_at, granted_at=EXCLUDED.granted_at, duration_days=EXCLUDED.duration_days`
	_, err := r.db.Pool.Exec(ctx, q,
		int64(grant.Identity), grant.ExpiresAt, grant.GrantedAt, grant.DurationDays)
	return err
}

// Get loads the stored grant for an identity.
func (r *VipRepo) Get(ctx context.Context, id model.Identity) (*model.VipGrant, error) {
	const q = `
SELECT identity, expires_at, granted_at, duration_days
FROM vip_grants WHERE identity=$1`
	var (
		g        model.VipGrant
		identity int64
	)
	err := r.db.Pool.QueryRow(ctx, q, int64(id)).Scan(&identity, &g.ExpiresAt, &g.GrantedAt, &g.DurationDays)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	g.Identity = model.Identity(identity)
	return &g, nil
}

// Delete removes the grant for an identity.
func (r *VipRepo) Delete(ctx context.Context, id model.Identity) error {
	const q = `DELETE FROM vip_grants WHERE identity=$1`
	tag, err := r.db.Pool.Exec(ctx, q, int64(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
