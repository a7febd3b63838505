// Package postgres contains PostgreSQL implementations of repository interfaces.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"

	"github.com/and161185/lexes/internal/errs"
)

const (
	defaultOpTimeout  = 5 * time.Second
	defaultRetryDelay = 100 * time.Millisecond

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// PgxPool is a minimal abstraction over a Postgres connection pool,
// used by repositories. It is implemented by *pgxpool.Pool and pgxmock.PgxPoolIface.
type PgxPool interface {
	// Exec executes a SQL command and returns the command tag.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	// Query executes a SELECT and returns a rows iterator.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	// QueryRow executes a query expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	// BeginTx starts a transaction with the provided options.
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	// Ping checks liveness; a pool re-dials broken connections on the next acquire.
	Ping(ctx context.Context) error
	// Close shuts down the pool and frees resources.
	Close()
}

// DB wraps the pool with a per-operation timeout and a reconnect-and-retry-once policy.
// Zero OpTimeout/RetryDelay select the defaults.
type DB struct {
	Pool       PgxPool
	OpTimeout  time.Duration
	RetryDelay time.Duration
}

// New creates a new connection pool for the given DSN.
func New(ctx context.Context, dsn string, opTimeout time.Duration) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{Pool: pool, OpTimeout: opTimeout}, nil
}

// Close closes the underlying pool.
func (db *DB) Close() { db.Pool.Close() }

// Ping checks that storage is reachable within the operation timeout.
func (db *DB) Ping(ctx context.Context) error {
	return db.do(ctx, db.Pool.Ping)
}

// Do runs an idempotent op through the timeout and reconnect policy.
func (db *DB) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return db.do(ctx, op)
}

// Write runs a non-idempotent op. It is retried only when the first attempt
// provably never reached the server.
func (db *DB) Write(ctx context.Context, op func(ctx context.Context) error) error {
	return db.write(ctx, op)
}

// do runs op with a bounded timeout. A connection-level failure is retried once
// after a liveness ping; a second failure or a timeout becomes errs.ErrUnavailable.
func (db *DB) do(ctx context.Context, op func(ctx context.Context) error) error {
	return db.run(ctx, isConnectionLost, op)
}

// write is do for statements whose replay could apply twice.
func (db *DB) write(ctx context.Context, op func(ctx context.Context) error) error {
	return db.run(ctx, pgconn.SafeToRetry, op)
}

func (db *DB) run(ctx context.Context, retryable func(error) bool, op func(ctx context.Context) error) error {
	timeout := db.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	delay := db.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(delay)), func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if attempt > 0 {
			_ = db.Pool.Ping(opCtx)
		}
		attempt++

		err := op(opCtx)
		if err != nil && retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return nil
	}
	if isConnectionLost(err) || isTimeout(err) {
		return fmt.Errorf("%w: %v", errs.ErrUnavailable, err)
	}
	return err
}

// inTx runs fn inside a transaction; the whole transaction is the retry unit,
// replayed only when the first attempt never reached the server.
func (db *DB) inTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return db.write(ctx, func(ctx context.Context) (err error) {
		tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback(ctx)
				return
			}
			if e := tx.Commit(ctx); e != nil {
				err = e
			}
		}()
		return fn(ctx, tx)
	})
}

func isConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && !netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err)
}

// isUniqueViolation reports whether the error is a unique constraint violation.
func isUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

func pgCode(err error) string {
	var pg *pgconn.PgError
	if errors.As(err, &pg) {
		return pg.Code
	}
	return ""
}
