package repository

import (
	"context"
	"time"

	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// SessionRepository stores issued bearer tokens by hash.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, s *model.Session) error
	// Find returns the session of accountID with tokenHash.
	Find(ctx context.Context, accountID uuid.UUID, tokenHash []byte) (*model.Session, error)
	// Revoke marks the session revoked; revoking an unknown session is not an error.
	Revoke(ctx context.Context, accountID uuid.UUID, tokenHash []byte) error
	// PurgeExpired deletes sessions that expired or were revoked before t.
	PurgeExpired(ctx context.Context, t time.Time) (int64, error)
}
