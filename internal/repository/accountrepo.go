// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AccountRepository stores accounts together with their credentials.
type AccountRepository interface {
	// Create inserts account, credential and the first session atomically.
	// A username collision yields errs.ErrAlreadyExists.
	Create(ctx context.Context, a *model.Account, c *model.Credential, s *model.Session) error
	// GetByID loads an account.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	// GetByUsername loads an account and its credential by lowercase username.
	GetByUsername(ctx context.Context, username string) (*model.Account, *model.Credential, error)
	// Exists reports whether an account with id exists.
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// UsernameExists reports whether username is taken, case-insensitively.
	UsernameExists(ctx context.Context, username string) (bool, error)
	// Update applies the change in one transaction.
	Update(ctx context.Context, ch model.AccountChange) error
}
