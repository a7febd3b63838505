package repository

import (
	"context"

	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// LexRepository stores lexes.
type LexRepository interface {
	// Create inserts a lex; inserted is false when no row was written.
	Create(ctx context.Context, l *model.Lex) (inserted bool, err error)
	// ListPublished returns published lexes newest first.
	ListPublished(ctx context.Context, limit, offset int) ([]model.LexView, error)
	// ListByAccount returns the latest published lexes of one account.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LexView, error)
}
