package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, p Policy) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := NewPG(mock, p)
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestAllow_NoRow_Allows(t *testing.T) {
	l, mock, _ := newLimiter(t, DefaultPolicy)
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("a@b.c", []byte("h")).
		WillReturnError(pgx.ErrNoRows)

	ok, wait, err := l.Allow(context.Background(), "a@b.c", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)
}

func TestAllow_Blocked(t *testing.T) {
	l, mock, now := newLimiter(t, DefaultPolicy)
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs("a@b.c", []byte("h")).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(10 * time.Minute)))

	ok, wait, err := l.Allow(context.Background(), "a@b.c", []byte("h"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 10*time.Minute, wait)
}

func TestAllow_LockExpired(t *testing.T) {
	l, mock, now := newLimiter(t, DefaultPolicy)
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Second)))

	ok, _, err := l.Allow(context.Background(), "a@b.c", []byte("h"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllow_DBError(t *testing.T) {
	l, mock, _ := newLimiter(t, DefaultPolicy)
	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter`).WillReturnError(errors.New("db down"))

	ok, _, err := l.Allow(context.Background(), "a@b.c", []byte("h"))
	require.Error(t, err)
	require.False(t, ok)
}

func TestSuccess_ClearsRow(t *testing.T) {
	l, mock, _ := newLimiter(t, DefaultPolicy)
	mock.ExpectExec(`DELETE FROM auth_limiter WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@b.c", []byte("h")).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, l.Success(context.Background(), "a@b.c", []byte("h")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BelowThreshold(t *testing.T) {
	l, mock, _ := newLimiter(t, Policy{Window: time.Minute, MaxFails: 3, BlockFor: time.Hour})
	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("a@b.c", []byte("h"), time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

	locked, wait, err := l.Failure(context.Background(), "a@b.c", []byte("h"))
	require.NoError(t, err)
	require.False(t, locked)
	require.Zero(t, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_LocksAtThreshold(t *testing.T) {
	l, mock, now := newLimiter(t, Policy{Window: time.Minute, MaxFails: 3, BlockFor: time.Hour})
	mock.ExpectQuery(`INSERT INTO auth_limiter`).
		WithArgs("a@b.c", []byte("h"), time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE auth_limiter SET blocked_until=\$3, fail_count=0 WHERE email=\$1 AND ip_hash=\$2`).
		WithArgs("a@b.c", []byte("h"), now.Add(time.Hour)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	locked, wait, err := l.Failure(context.Background(), "a@b.c", []byte("h"))
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, time.Hour, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHashIP_Determinism(t *testing.T) {
	require.Equal(t, HashIP("1.2.3.4"), HashIP("1.2.3.4"))
	require.NotEqual(t, HashIP("1.2.3.4"), HashIP("5.6.7.8"))
	require.Len(t, HashIP("x"), 32)
}
