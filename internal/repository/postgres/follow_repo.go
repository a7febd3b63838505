package postgres

import (
	"context"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// FollowRepo implements FollowRepository using PostgreSQL.
type FollowRepo struct{ db *DB }

// NewFollowRepo constructs a follow repository.
func NewFollowRepo(db *DB) *FollowRepo { return &FollowRepo{db: db} }

// Add inserts the edge; the primary key turns a concurrent duplicate into a no-op.
func (r *FollowRepo) Add(ctx context.Context, followeeID, followerID uuid.UUID) (bool, error) {
	const q = `
INSERT INTO followers (account_id, follower_id)
VALUES ($1, $2)
ON CONFLICT (account_id, follower_id) DO NOTHING`
	var inserted bool
	err := r.db.do(ctx, func(ctx context.Context) error {
		tag, err := r.db.Pool.Exec(ctx, q, followeeID, followerID)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if isForeignKeyViolation(err) {
		return false, errs.ErrNotFound
	}
	return inserted, err
}

// Remove locks the matching rows, deletes them and reports both counts.
func (r *FollowRepo) Remove(ctx context.Context, followeeID, followerID uuid.UUID) (observed, removed int64, err error) {
	const sel = `
SELECT count(*) FROM (
  SELECT 1 FROM followers WHERE account_id=$1 AND follower_id=$2 FOR UPDATE
) m`
	const del = `DELETE FROM followers WHERE account_id=$1 AND follower_id=$2`

	err = r.db.inTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, sel, followeeID, followerID).Scan(&observed); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, del, followeeID, followerID)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return nil
	})
	return observed, removed, err
}

// ListFollowing lists the accounts followed by accountID.
func (r *FollowRepo) ListFollowing(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	const q = `
SELECT a.id, a.username, a.first_name, a.last_name,
       EXISTS (SELECT 1 FROM followers s WHERE s.account_id = a.id AND s.follower_id = $2)
FROM followers f JOIN accounts a ON a.id = f.account_id
WHERE f.follower_id = $1
ORDER BY f.created_at DESC`
	return r.list(ctx, q, accountID, viewerID)
}

// ListFollowers lists the followers of accountID.
func (r *FollowRepo) ListFollowers(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	const q = `
SELECT a.id, a.username, a.first_name, a.last_name,
       EXISTS (SELECT 1 FROM followers s WHERE s.account_id = a.id AND s.follower_id = $2)
FROM followers f JOIN accounts a ON a.id = f.follower_id
WHERE f.account_id = $1
ORDER BY f.created_at DESC`
	return r.list(ctx, q, accountID, viewerID)
}

func (r *FollowRepo) list(ctx context.Context, q string, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	var out []model.FollowEntry
	err := r.db.do(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.db.Pool.Query(ctx, q, accountID, viewerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e model.FollowEntry
			if err := rows.Scan(&e.Account.ID, &e.Account.Username, &e.Account.FirstName, &e.Account.LastName, &e.Following); err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IsFollowing reports whether followerID follows followeeID.
func (r *FollowRepo) IsFollowing(ctx context.Context, followeeID, followerID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM followers WHERE account_id=$1 AND follower_id=$2)`
	var ok bool
	err := r.db.do(ctx, func(ctx context.Context) error {
		return r.db.Pool.QueryRow(ctx, q, followeeID, followerID).Scan(&ok)
	})
	return ok, err
}
