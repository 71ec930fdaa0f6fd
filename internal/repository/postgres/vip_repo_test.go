package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

func TestVipRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVipRepo(db)
	ctx := context.Background()

	now := time.Now()
	grant := model.VipGrant{
		Identity:     42,
		ExpiresAt:    now.Add(72 * time.Hour),
		GrantedAt:    now,
		DurationDays: 3,
	}

	mock.ExpectExec(`INSERT INTO vip_grants \(identity, expires_at, granted_at, duration_days\)`).
		WithArgs(int64(42), grant.ExpiresAt, grant.GrantedAt, 3).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Upsert(ctx, grant))
}

func TestVipRepo_Get(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVipRepo(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT identity, expires_at, granted_at, duration_days`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"identity", "expires_at", "granted_at", "duration_days"}).
			AddRow(int64(42), now.Add(time.Hour), now, 1))
	g, err := r.Get(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, model.Identity(42), g.Identity)
	require.Equal(t, 1, g.DurationDays)

	mock.ExpectQuery(`SELECT identity, expires_at, granted_at, duration_days`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, 7)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestVipRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewVipRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM vip_grants WHERE identity=\$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, 42))

	mock.ExpectExec(`DELETE FROM vip_grants WHERE identity=\$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, 42), errs.ErrNotFound)
}
