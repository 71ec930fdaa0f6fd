package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/kmalkov/searchgate/internal/model"
)

func TestCounterRepo_Count(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCounterRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT count FROM daily_counters WHERE kind=\$1 AND identity=\$2 AND day=\$3`).
		WithArgs("search", int64(42), "2026-08-31").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	n, err := r.Count(ctx, model.ActionSearch, 42, "2026-08-31")
	require.NoError(t, err)
	require.Equal(t, 4, n)

	// A missing row is a zero count, not an error.
	mock.ExpectQuery(`SELECT count FROM daily_counters`).
		WithArgs("search", int64(7), "2026-08-31").
		WillReturnError(pgx.ErrNoRows)
	n, err = r.Count(ctx, model.ActionSearch, 7, "2026-08-31")
	require.NoError(t, err)
	require.Zero(t, n)

	mock.ExpectQuery(`SELECT count FROM daily_counters`).
		WithArgs("search", int64(7), "2026-08-31").
		WillReturnError(errors.New("boom"))
	_, err = r.Count(ctx, model.ActionSearch, 7, "2026-08-31")
	require.Error(t, err)
}

func TestCounterRepo_Increment(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCounterRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`INSERT INTO daily_counters \(kind, identity, day, count\)`).
		WithArgs("random", int64(42), "2026-08-31").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	n, err := r.Increment(ctx, model.ActionRandom, 42, "2026-08-31")
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestCounterRepo_PurgeBefore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCounterRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM daily_counters WHERE day < \$1`).
		WithArgs("2026-08-31").
		WillReturnResult(pgxmock.NewResult("DELETE", 12))
	n, err := r.PurgeBefore(ctx, "2026-08-31")
	require.NoError(t, err)
	require.EqualValues(t, 12, n)
}

func TestCounterRepo_ResetAll(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewCounterRepo(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM daily_counters`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	require.NoError(t, r.ResetAll(ctx))
}
