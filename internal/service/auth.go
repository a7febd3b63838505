// Package service contains the application services: authentication, accounts,
// the follow graph and lexes.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/lexes/internal/crypto"
	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/limiter"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// AuthService defines login and session operations.
type AuthService interface {
	// Login verifies username/password and opens a new session.
	Login(ctx context.Context, username, password, remoteAddr string) (model.Account, model.Tokens, error)
	// VerifyToken reports whether token is a live session of accountID.
	VerifyToken(ctx context.Context, accountID uuid.UUID, token string) (bool, error)
	// Logout revokes the session carrying token.
	Logout(ctx context.Context, accountID uuid.UUID, token string) error
	// PurgeExpired removes dead sessions and returns how many were deleted.
	PurgeExpired(ctx context.Context) (int64, error)
}

// Credentials is the part of the authenticator the other services build on.
type Credentials interface {
	NewCredential(accountID uuid.UUID, password string) (*model.Credential, error)
	NewSession(accountID uuid.UUID) (*model.Session, model.Tokens, error)
	VerifyToken(ctx context.Context, accountID uuid.UUID, token string) (bool, error)
}

// PasswordHasher derives and checks password verifiers.
type PasswordHasher interface {
	Hash(password string) (hash, salt []byte, err error)
	Verify(password string, salt, hash []byte) bool
}

type AuthServiceImpl struct {
	accounts repository.AccountRepository
	sessions repository.SessionRepository
	lim      limiter.Limiter
	ttl      time.Duration
	hasher   PasswordHasher
	now      func() time.Time
}

var (
	_ AuthService = (*AuthServiceImpl)(nil)
	_ Credentials = (*AuthServiceImpl)(nil)
)

// NewAuthService constructs AuthService with required dependencies.
// A nil limiter disables lockout.
func NewAuthService(accounts repository.AccountRepository, sessions repository.SessionRepository, lim limiter.Limiter, ttl time.Duration) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Nop{}
	}
	return &AuthServiceImpl{
		accounts: accounts,
		sessions: sessions,
		lim:      lim,
		ttl:      ttl,
		hasher:   pkgcrypto.Argon2id{},
		now:      time.Now,
	}
}

// Login authenticates by case-insensitive username. Unknown usernames and wrong
// passwords are reported separately; both count against the limiter.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, remoteAddr string) (model.Account, model.Tokens, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return model.Account{}, model.Tokens{}, fmt.Errorf("%w: empty username/password", errs.ErrValidation)
	}
	key := limiter.NewKey(username, remoteAddr)

	allowed, _, err := s.lim.Allow(ctx, key)
	if err != nil {
		return model.Account{}, model.Tokens{}, err
	}
	if !allowed {
		return model.Account{}, model.Tokens{}, errs.ErrRateLimited
	}

	a, c, err := s.accounts.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Account{}, model.Tokens{}, s.failed(ctx, key, errs.ErrWrongUsername)
	case err != nil:
		return model.Account{}, model.Tokens{}, err
	}
	if !s.hasher.Verify(password, c.SaltAuth, c.PwdHash) {
		return model.Account{}, model.Tokens{}, s.failed(ctx, key, errs.ErrWrongPassword)
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, key)

	sess, tok, err := s.NewSession(a.ID)
	if err != nil {
		return model.Account{}, model.Tokens{}, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return model.Account{}, model.Tokens{}, fmt.Errorf("create session: %w", err)
	}
	return *a, tok, nil
}

// failed records a failed attempt and returns ErrRateLimited once the key is locked.
func (s *AuthServiceImpl) failed(ctx context.Context, key limiter.Key, cause error) error {
	if blocked, _, err := s.lim.Failure(ctx, key); err == nil && blocked {
		return errs.ErrRateLimited
	}
	return cause
}

// VerifyToken reports whether token belongs to an unrevoked, unexpired session of accountID.
func (s *AuthServiceImpl) VerifyToken(ctx context.Context, accountID uuid.UUID, token string) (bool, error) {
	if accountID == uuid.Nil || token == "" {
		return false, nil
	}
	sess, err := s.sessions.Find(ctx, accountID, pkgcrypto.HashToken(token))
	if errors.Is(err, errs.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sess.Valid(s.now()), nil
}

// Logout revokes the presenting session. Revoking twice is not an error.
func (s *AuthServiceImpl) Logout(ctx context.Context, accountID uuid.UUID, token string) error {
	ok, err := s.VerifyToken(ctx, accountID, token)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrBadToken
	}
	return s.sessions.Revoke(ctx, accountID, pkgcrypto.HashToken(token))
}

// PurgeExpired deletes sessions that are past their expiry or were revoked.
func (s *AuthServiceImpl) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.PurgeExpired(ctx, s.now())
}

// IssueToken returns a fresh opaque bearer token.
func (s *AuthServiceImpl) IssueToken() (string, error) {
	return pkgcrypto.NewToken()
}

// NewSession builds (but does not store) a session for accountID.
func (s *AuthServiceImpl) NewSession(accountID uuid.UUID) (*model.Session, model.Tokens, error) {
	token, err := s.IssueToken()
	if err != nil {
		return nil, model.Tokens{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, model.Tokens{}, err
	}
	now := s.now()
	sess := &model.Session{
		ID:        id,
		AccountID: accountID,
		TokenHash: pkgcrypto.HashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	return sess, model.Tokens{AccessToken: token, ExpiresAt: sess.ExpiresAt}, nil
}

// NewCredential hashes password with a fresh salt.
func (s *AuthServiceImpl) NewCredential(accountID uuid.UUID, password string) (*model.Credential, error) {
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return &model.Credential{AccountID: accountID, PwdHash: hash, SaltAuth: salt}, nil
}
