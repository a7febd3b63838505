package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the part of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Runner executes storage operations under a timeout and retry policy.
// Do may replay op after a lost connection; Write replays only unsent statements.
type Runner interface {
	Do(ctx context.Context, op func(ctx context.Context) error) error
	Write(ctx context.Context, op func(ctx context.Context) error) error
}

type direct struct{}

func (direct) Do(ctx context.Context, op func(ctx context.Context) error) error    { return op(ctx) }
func (direct) Write(ctx context.Context, op func(ctx context.Context) error) error { return op(ctx) }

// PG is a PostgreSQL-backed limiter: maxFails failures inside window lock the key for blockFor.
type PG struct {
	q        Querier
	run      Runner
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewPG constructs a PostgreSQL-backed limiter. Every statement goes through run;
// a nil run calls q directly.
func NewPG(q Querier, run Runner, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	if run == nil {
		run = direct{}
	}
	return &PG{q: q, run: run, window: window, maxFails: maxFails, blockFor: blockFor, now: time.Now}
}

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, k Key) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM auth_limiter WHERE username=$1 AND ip_hash=$2`
	var blockedUntil time.Time
	err := l.run.Do(ctx, func(ctx context.Context) error {
		return l.q.QueryRow(ctx, q, k.Username, k.IPHash).Scan(&blockedUntil)
	})
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	case err != nil:
		return false, 0, err
	}
	if now := l.now(); blockedUntil.After(now) {
		return false, blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for the key.
func (l *PG) Success(ctx context.Context, k Key) error {
	const q = `
UPDATE auth_limiter SET fail_count=0, blocked_until='epoch', updated_at=now()
WHERE username=$1 AND ip_hash=$2`
	return l.run.Do(ctx, func(ctx context.Context) error {
		_, err := l.q.Exec(ctx, q, k.Username, k.IPHash)
		return err
	})
}

// Failure counts a failed attempt. The counter restarts when the previous failure is older
// than the window; reaching maxFails sets blocked_until in the same statement.
func (l *PG) Failure(ctx context.Context, k Key) (bool, time.Duration, error) {
	const q = `
INSERT INTO auth_limiter AS t (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, CASE WHEN $3 <= 1 THEN now() + $4::interval ELSE 'epoch' END, now())
ON CONFLICT (username, ip_hash) DO UPDATE
SET fail_count = CASE WHEN now() - t.updated_at > $5::interval THEN 1 ELSE t.fail_count + 1 END,
    blocked_until = CASE
        WHEN (CASE WHEN now() - t.updated_at > $5::interval THEN 1 ELSE t.fail_count + 1 END) >= $3
        THEN now() + $4::interval ELSE t.blocked_until END,
    updated_at = now()
RETURNING fail_count`
	var fails int
	err := l.run.Write(ctx, func(ctx context.Context) error {
		return l.q.QueryRow(ctx, q, k.Username, k.IPHash, l.maxFails, l.blockFor, l.window).Scan(&fails)
	})
	if err != nil {
		return false, 0, err
	}
	if fails >= l.maxFails {
		return true, l.blockFor, nil
	}
	return false, 0, nil
}

// Purge deletes rows whose failure window closed and whose lockout ended by now.
func (l *PG) Purge(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM auth_limiter WHERE updated_at < $1 AND blocked_until < $2`
	var n int64
	err := l.run.Do(ctx, func(ctx context.Context) error {
		tag, err := l.q.Exec(ctx, q, now.Add(-l.window), now)
		n = tag.RowsAffected()
		return err
	})
	return n, err
}
