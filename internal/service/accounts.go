package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgcrypto "github.com/and161185/lexes/internal/crypto"
	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/repository"
	"github.com/gofrs/uuid/v5"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ProfileLexLimit is how many latest lexes a profile shows.
const ProfileLexLimit = 75

// AccountService defines account registry operations.
type AccountService interface {
	Create(ctx context.Context, su model.Signup) (model.Account, model.Tokens, error)
	Get(ctx context.Context, id uuid.UUID) (model.Account, error)
	Update(ctx context.Context, id uuid.UUID, token string, upd model.ProfileUpdate) (model.Account, error)
	UsernameUnique(ctx context.Context, username string) (bool, error)
	Profile(ctx context.Context, id, viewerID uuid.UUID) (model.Profile, error)
}

type AccountServiceImpl struct {
	accounts repository.AccountRepository
	follows  repository.FollowRepository
	lexes    repository.LexRepository
	creds    Credentials
	now      func() time.Time
}

var _ AccountService = (*AccountServiceImpl)(nil)

// NewAccountService wires the registry to its repositories and the authenticator.
func NewAccountService(accounts repository.AccountRepository, follows repository.FollowRepository, lexes repository.LexRepository, creds Credentials) *AccountServiceImpl {
	return &AccountServiceImpl{accounts: accounts, follows: follows, lexes: lexes, creds: creds, now: time.Now}
}

// Create registers an account and opens its first session. Username uniqueness
// is left to storage; a collision is reported as ErrUsernameTaken.
func (s *AccountServiceImpl) Create(ctx context.Context, su model.Signup) (model.Account, model.Tokens, error) {
	a := model.Account{
		Username:  normalizeUsername(su.Username),
		FirstName: titleName(su.FirstName),
		LastName:  titleName(su.LastName),
		Status:    model.StatusCreated,
		Email:     su.Email,
		Birthday:  su.Birthday,
	}
	if a.Username == "" || a.FirstName == "" || a.LastName == "" || su.Password == "" {
		return model.Account{}, model.Tokens{}, fmt.Errorf("%w: first_name, last_name, username and password are required", errs.ErrValidation)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Account{}, model.Tokens{}, err
	}
	a.ID = id
	a.CreatedAt = s.now()

	cred, err := s.creds.NewCredential(id, su.Password)
	if err != nil {
		return model.Account{}, model.Tokens{}, err
	}
	sess, tok, err := s.creds.NewSession(id)
	if err != nil {
		return model.Account{}, model.Tokens{}, err
	}

	if err := s.accounts.Create(ctx, &a, cred, sess); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Account{}, model.Tokens{}, errs.ErrUsernameTaken
		}
		return model.Account{}, model.Tokens{}, fmt.Errorf("create account: %w", err)
	}
	return a, tok, nil
}

// Get loads an account.
func (s *AccountServiceImpl) Get(ctx context.Context, id uuid.UUID) (model.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	return *a, nil
}

// Update replaces the profile of id. Failures are checked in order: missing
// account, bad token, then username taken. Empty names and username keep the
// current values; email and birthday are replaced as given.
func (s *AccountServiceImpl) Update(ctx context.Context, id uuid.UUID, token string, upd model.ProfileUpdate) (model.Account, error) {
	cur, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Account{}, err
	}
	ok, err := s.creds.VerifyToken(ctx, id, token)
	if err != nil {
		return model.Account{}, err
	}
	if !ok {
		return model.Account{}, errs.ErrBadToken
	}

	next := *cur
	if u := normalizeUsername(upd.Username); u != "" {
		next.Username = u
	}
	if n := titleName(upd.FirstName); n != "" {
		next.FirstName = n
	}
	if n := titleName(upd.LastName); n != "" {
		next.LastName = n
	}
	next.Email = upd.Email
	next.Birthday = upd.Birthday

	ch := model.AccountChange{Account: next}
	if upd.NewPassword != nil {
		if *upd.NewPassword == "" {
			return model.Account{}, fmt.Errorf("%w: empty password", errs.ErrValidation)
		}
		ch.Credential, err = s.creds.NewCredential(id, *upd.NewPassword)
		if err != nil {
			return model.Account{}, err
		}
		ch.KeepToken = pkgcrypto.HashToken(token)
	}

	if err := s.accounts.Update(ctx, ch); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return model.Account{}, errs.ErrUsernameTaken
		}
		return model.Account{}, fmt.Errorf("update account: %w", err)
	}
	return next, nil
}

// UsernameUnique reports whether username is free, ignoring case.
func (s *AccountServiceImpl) UsernameUnique(ctx context.Context, username string) (bool, error) {
	username = normalizeUsername(username)
	if username == "" {
		return false, fmt.Errorf("%w: empty username", errs.ErrValidation)
	}
	taken, err := s.accounts.UsernameExists(ctx, username)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// Profile composes the account page as seen by viewerID; uuid.Nil means anonymous.
func (s *AccountServiceImpl) Profile(ctx context.Context, id, viewerID uuid.UUID) (model.Profile, error) {
	a, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return model.Profile{}, err
	}
	p := model.Profile{Account: *a}

	if viewerID != uuid.Nil {
		ok, err := s.accounts.Exists(ctx, viewerID)
		if err != nil {
			return model.Profile{}, err
		}
		if !ok {
			return model.Profile{}, errs.ErrViewerNotFound
		}
		if p.Following, err = s.follows.IsFollowing(ctx, id, viewerID); err != nil {
			return model.Profile{}, err
		}
	}

	if p.Lexes, err = s.lexes.ListByAccount(ctx, id, ProfileLexLimit); err != nil {
		return model.Profile{}, err
	}
	if p.Follows, err = s.follows.ListFollowing(ctx, id, viewerID); err != nil {
		return model.Profile{}, err
	}
	if p.Followers, err = s.follows.ListFollowers(ctx, id, viewerID); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// titleName upper-cases the first letter of every word. A Caser keeps state,
// so one is built per call.
func titleName(s string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(s))
}
