package postgres

import (
	"context"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LexRepo implements LexRepository using PostgreSQL.
type LexRepo struct{ db *DB }

// NewLexRepo constructs a lex repository.
func NewLexRepo(db *DB) *LexRepo { return &LexRepo{db: db} }

// Create inserts a lex and fills PublishAt from the database clock.
func (r *LexRepo) Create(ctx context.Context, l *model.Lex) (bool, error) {
	const q = `
INSERT INTO lexes (id, account_id, content, status)
VALUES ($1, $2, $3, $4)
RETURNING publish_dt`
	err := r.db.write(ctx, func(ctx context.Context) error {
		return r.db.Pool.QueryRow(ctx, q, l.ID, l.AccountID, l.Content, string(l.Status)).Scan(&l.PublishAt)
	})
	if isForeignKeyViolation(err) {
		return false, errs.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const lexViewSelect = `
SELECT l.id, l.account_id, l.content, l.status, l.publish_dt,
       a.id, a.username, a.first_name, a.last_name
FROM lexes l JOIN accounts a ON a.id = l.account_id`

// ListPublished returns one page of the public feed, newest first.
func (r *LexRepo) ListPublished(ctx context.Context, limit, offset int) ([]model.LexView, error) {
	const q = lexViewSelect + `
WHERE l.status = 'P'
ORDER BY l.publish_dt DESC
LIMIT $1 OFFSET $2`
	return r.list(ctx, q, limit, offset)
}

// ListByAccount returns the latest published lexes of one account.
func (r *LexRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LexView, error) {
	const q = lexViewSelect + `
WHERE l.status = 'P' AND l.account_id = $1
ORDER BY l.publish_dt DESC
LIMIT $2`
	return r.list(ctx, q, accountID, limit)
}

func (r *LexRepo) list(ctx context.Context, q string, args ...any) ([]model.LexView, error) {
	var out []model.LexView
	err := r.db.do(ctx, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.db.Pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				v         model.LexView
				status    string
				publishAt time.Time
			)
			if err := rows.Scan(&v.Lex.ID, &v.Lex.AccountID, &v.Lex.Content, &status, &publishAt,
				&v.Author.ID, &v.Author.Username, &v.Author.FirstName, &v.Author.LastName); err != nil {
				return err
			}
			v.Lex.Status = model.LexStatus(status)
			v.Lex.PublishAt = publishAt
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
