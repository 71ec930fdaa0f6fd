package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kmalkov/searchgate/internal/errs"
	"github.com/kmalkov/searchgate/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestBanRepo_Upsert(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBanRepo(db)
	ctx := context.Background()

	rec := model.BanRecord{
		Identity: 42,
		Reason:   "spam",
		BannedAt: time.Now(),
		BannedBy: 1,
	}

	mock.ExpectExec(`INSERT INTO bans \(identity, reason, banned_at, banned_by\)`).
		WithArgs(int64(42), "spam", rec.BannedAt, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Upsert(ctx, rec))

	mock.ExpectExec(`INSERT INTO bans`).
		WithArgs(int64(42), "spam", rec.BannedAt, int64(1)).
		WillReturnError(errors.New("boom"))
	require.Error(t, r.Upsert(ctx, rec))
}

func TestBanRepo_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBanRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM bans WHERE identity=\$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, 42))

	mock.ExpectExec(`DELETE FROM bans WHERE identity=\$1`).
		WithArgs(int64(42)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, 42), errs.ErrNotFound)
}

func TestBanRepo_Exists(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBanRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM bans WHERE identity=\$1\)`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	banned, err := r.Exists(ctx, 42)
	require.NoError(t, err)
	require.True(t, banned)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	banned, err = r.Exists(ctx, 7)
	require.NoError(t, err)
	require.False(t, banned)
}

func TestBanRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewBanRepo(db)
	ctx := context.Background()

	at := time.Now()
	mock.ExpectQuery(`SELECT identity, reason, banned_at, banned_by`).
		WillReturnRows(pgxmock.NewRows([]string{"identity", "reason", "banned_at", "banned_by"}).
			AddRow(int64(42), "spam", at, int64(1)).
			AddRow(int64(7), "abuse", at.Add(-time.Hour), int64(1)))

	recs, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, model.Identity(42), recs[0].Identity)
	require.Equal(t, "abuse", recs[1].Reason)
}
