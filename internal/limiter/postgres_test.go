package limiter

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/repository/postgres"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newLimiter(t *testing.T, maxFails int) (*PG, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return NewPG(mock, nil, 15*time.Minute, maxFails, 10*time.Minute), mock
}

func TestAllow(t *testing.T) {
	l, mock := newLimiter(t, 5)
	defer mock.Close()
	now := time.Now()
	l.now = func() time.Time { return now }
	k := NewKey("Ana", "1.2.3.4:5555")

	mock.ExpectQuery(`SELECT blocked_until FROM auth_limiter WHERE username=\$1 AND ip_hash=\$2`).
		WithArgs("ana", k.IPHash).
		WillReturnError(pgx.ErrNoRows)
	ok, dur, err := l.Allow(context.Background(), k)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, dur)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(3 * time.Minute)))
	ok, dur, err = l.Allow(context.Background(), k)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 3*time.Minute, dur)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Minute)))
	ok, _, err = l.Allow(context.Background(), k)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnError(errors.New("db boom"))
	ok, _, err = l.Allow(context.Background(), k)
	require.Error(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	k := NewKey("ana", "1.2.3.4")

	mock.ExpectQuery(`INSERT INTO auth_limiter AS t .* RETURNING fail_count`).
		WithArgs("ana", k.IPHash, 3, 10*time.Minute, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, dur, err := l.Failure(context.Background(), k)
	require.NoError(t, err)
	require.False(t, blocked)
	require.Zero(t, dur)

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("ana", k.IPHash, 3, 10*time.Minute, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	blocked, dur, err = l.Failure(context.Background(), k)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, dur)

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("ana", k.IPHash, 3, 10*time.Minute, 15*time.Minute).
		WillReturnError(errors.New("query error"))
	_, _, err = l.Failure(context.Background(), k)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSuccessAndPurge(t *testing.T) {
	l, mock := newLimiter(t, 3)
	defer mock.Close()
	k := NewKey("ana", "1.2.3.4")
	cut := time.Now()

	mock.ExpectExec(`UPDATE auth_limiter SET fail_count=0`).
		WithArgs("ana", k.IPHash).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, l.Success(context.Background(), k))

	mock.ExpectExec(`DELETE FROM auth_limiter WHERE updated_at < \$1`).
		WithArgs(cut.Add(-15*time.Minute), cut).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))
	n, err := l.Purge(context.Background(), cut)
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewKey_IgnoresPortAndCase(t *testing.T) {
	a := NewKey("ANA", "1.2.3.4:123")
	b := NewKey("ana", "1.2.3.4:999")
	c := NewKey("ana", "5.6.7.8:123")
	require.Equal(t, a, b)
	require.NotEqual(t, a.IPHash, c.IPHash)
	require.Len(t, a.IPHash, 32)
}

func TestNop(t *testing.T) {
	var l Limiter = Nop{}
	ok, _, err := l.Allow(context.Background(), Key{})
	require.NoError(t, err)
	require.True(t, ok)
	blocked, _, err := l.Failure(context.Background(), Key{})
	require.NoError(t, err)
	require.False(t, blocked)
	require.NoError(t, l.Success(context.Background(), Key{}))
}

func TestAllow_SurvivesLostConnection(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	db := &postgres.DB{Pool: mock, RetryDelay: time.Millisecond}
	l := NewPG(mock, db, 15*time.Minute, 5, 10*time.Minute)
	k := NewKey("ana", "1.2.3.4")

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnError(io.ErrUnexpectedEOF)
	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnError(pgx.ErrNoRows)
	ok, _, err := l.Allow(context.Background(), k)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnError(io.EOF)
	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("ana", k.IPHash).
		WillReturnError(io.EOF)
	_, _, err = l.Allow(context.Background(), k)
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_NotReplayedAfterSend(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	db := &postgres.DB{Pool: mock, RetryDelay: time.Millisecond}
	l := NewPG(mock, db, 15*time.Minute, 3, 10*time.Minute)
	k := NewKey("ana", "1.2.3.4")

	// A replayed upsert would count the same failure twice.
	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("ana", k.IPHash, 3, 10*time.Minute, 15*time.Minute).
		WillReturnError(io.ErrUnexpectedEOF)
	_, _, err = l.Failure(context.Background(), k)
	require.ErrorIs(t, err, errs.ErrUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}
