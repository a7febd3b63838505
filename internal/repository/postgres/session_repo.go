package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SessionRepo implements SessionRepository using PostgreSQL.
type SessionRepo struct{ db *DB }

// NewSessionRepo constructs a session repository.
func NewSessionRepo(db *DB) *SessionRepo { return &SessionRepo{db: db} }

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertSession(ctx context.Context, q execer, s *model.Session) error {
	const ins = `
INSERT INTO login_session (id, account_id, token_hash, expires_at)
VALUES ($1, $2, $3, $4)`
	_, err := q.Exec(ctx, ins, s.ID, s.AccountID, s.TokenHash, s.ExpiresAt)
	return err
}

// Create stores a new session.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	err := r.db.write(ctx, func(ctx context.Context) error {
		return insertSession(ctx, r.db.Pool, s)
	})
	switch {
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	case isUniqueViolation(err):
		return errs.ErrAlreadyExists
	}
	return err
}

// Find selects the session of an account by token hash.
func (r *SessionRepo) Find(ctx context.Context, accountID uuid.UUID, tokenHash []byte) (*model.Session, error) {
	const q = `
SELECT id, account_id, token_hash, created_at, expires_at, revoked_at
FROM login_session WHERE account_id=$1 AND token_hash=$2`
	var s model.Session
	err := r.db.do(ctx, func(ctx context.Context) error {
		return r.db.Pool.QueryRow(ctx, q, accountID, tokenHash).
			Scan(&s.ID, &s.AccountID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Revoke marks a live session revoked.
func (r *SessionRepo) Revoke(ctx context.Context, accountID uuid.UUID, tokenHash []byte) error {
	const q = `
UPDATE login_session SET revoked_at=now()
WHERE account_id=$1 AND token_hash=$2 AND revoked_at IS NULL`
	return r.db.do(ctx, func(ctx context.Context) error {
		_, err := r.db.Pool.Exec(ctx, q, accountID, tokenHash)
		return err
	})
}

// PurgeExpired deletes sessions that expired or were revoked before t.
func (r *SessionRepo) PurgeExpired(ctx context.Context, t time.Time) (int64, error) {
	const q = `
DELETE FROM login_session
WHERE expires_at < $1 OR revoked_at < $1`
	var n int64
	err := r.db.do(ctx, func(ctx context.Context) error {
		tag, err := r.db.Pool.Exec(ctx, q, t)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}
