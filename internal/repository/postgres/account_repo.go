package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements AccountRepository using PostgreSQL.
type AccountRepo struct{ db *DB }

// NewAccountRepo constructs an account repository.
func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, username, first_name, last_name, status, email, birthday, created_at`

// Create inserts the account, its credential and (when s is not nil) its first session.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account, c *model.Credential, s *model.Session) error {
	const insAccount = `
INSERT INTO accounts (id, username, first_name, last_name, status, email, birthday)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	const insCredential = `
INSERT INTO login_credentials (account_id, pwd_hash, salt_auth)
VALUES ($1, $2, $3)`

	err := r.db.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insAccount,
			a.ID, a.Username, a.FirstName, a.LastName, string(a.Status), a.Email, a.Birthday); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insCredential, c.AccountID, c.PwdHash, c.SaltAuth); err != nil {
			return err
		}
		if s == nil {
			return nil
		}
		return insertSession(ctx, tx, s)
	})
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByID selects an account by ID.
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	const q = `
SELECT ` + accountColumns + `
FROM accounts WHERE id=$1`
	var a model.Account
	err := r.db.do(ctx, func(ctx context.Context) error {
		return scanAccount(r.db.Pool.QueryRow(ctx, q, id), &a)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUsername selects an account and its credential, matching username case-insensitively.
func (r *AccountRepo) GetByUsername(ctx context.Context, username string) (*model.Account, *model.Credential, error) {
	const q = `
SELECT a.id, a.username, a.first_name, a.last_name, a.status, a.email, a.birthday, a.created_at,
       c.pwd_hash, c.salt_auth
FROM accounts a JOIN login_credentials c ON c.account_id = a.id
WHERE lower(a.username) = lower($1)`
	var (
		a model.Account
		c model.Credential
	)
	err := r.db.do(ctx, func(ctx context.Context) error {
		return scanAccount(r.db.Pool.QueryRow(ctx, q, username), &a, &c.PwdHash, &c.SaltAuth)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	c.AccountID = a.ID
	return &a, &c, nil
}

// Exists reports whether the account exists.
func (r *AccountRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id=$1)`
	var ok bool
	err := r.db.do(ctx, func(ctx context.Context) error {
		return r.db.Pool.QueryRow(ctx, q, id).Scan(&ok)
	})
	return ok, err
}

// UsernameExists reports whether the username is taken, case-insensitively.
func (r *AccountRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(username) = lower($1))`
	var ok bool
	err := r.db.do(ctx, func(ctx context.Context) error {
		return r.db.Pool.QueryRow(ctx, q, username).Scan(&ok)
	})
	return ok, err
}

// Update rewrites the profile and, when a credential is given, the password; a password
// change revokes every other live session of the account. All writes share one transaction.
func (r *AccountRepo) Update(ctx context.Context, ch model.AccountChange) error {
	const updAccount = `
UPDATE accounts
SET username=$2, first_name=$3, last_name=$4, email=$5, birthday=$6
WHERE id=$1`
	const updCredential = `
UPDATE login_credentials
SET pwd_hash=$2, salt_auth=$3, updated_at=now()
WHERE account_id=$1`
	const revokeOthers = `
UPDATE login_session
SET revoked_at=now()
WHERE account_id=$1 AND token_hash<>$2 AND revoked_at IS NULL`

	a := ch.Account
	err := r.db.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updAccount, a.ID, a.Username, a.FirstName, a.LastName, a.Email, a.Birthday)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		if ch.Credential == nil {
			return nil
		}
		tag, err = tx.Exec(ctx, updCredential, a.ID, ch.Credential.PwdHash, ch.Credential.SaltAuth)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return errs.ErrPersist
		}
		_, err = tx.Exec(ctx, revokeOthers, a.ID, ch.KeepToken)
		return err
	})
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

func scanAccount(row pgx.Row, a *model.Account, extra ...any) error {
	var (
		status    string
		email     *string
		birthday  *time.Time
		createdAt time.Time
	)
	dest := append([]any{&a.ID, &a.Username, &a.FirstName, &a.LastName, &status, &email, &birthday, &createdAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	a.Status = model.AccountStatus(status)
	a.Email = email
	a.Birthday = birthday
	a.CreatedAt = createdAt
	return nil
}
