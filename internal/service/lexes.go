package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// FeedPageSize is the number of lexes in one feed page.
const FeedPageSize = 20

const maxFeedIndex = math.MaxInt / FeedPageSize

// LexService defines lex publishing and reading.
type LexService interface {
	Post(ctx context.Context, accountID uuid.UUID, token, content string, status model.LexStatus) (model.Lex, error)
	Feed(ctx context.Context, index int) ([]model.LexView, error)
	ByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LexView, error)
}

type LexServiceImpl struct {
	accounts repository.AccountRepository
	lexes    repository.LexRepository
	creds    Credentials
}

var _ LexService = (*LexServiceImpl)(nil)

// NewLexService constructs LexService.
func NewLexService(accounts repository.AccountRepository, lexes repository.LexRepository, creds Credentials) *LexServiceImpl {
	return &LexServiceImpl{accounts: accounts, lexes: lexes, creds: creds}
}

// Post stores a lex for accountID. A status outside P/R/D is stored as a draft.
func (s *LexServiceImpl) Post(ctx context.Context, accountID uuid.UUID, token, content string, status model.LexStatus) (model.Lex, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Lex{}, fmt.Errorf("%w: empty content", errs.ErrValidation)
	}
	ok, err := s.accounts.Exists(ctx, accountID)
	if err != nil {
		return model.Lex{}, err
	}
	if !ok {
		return model.Lex{}, errs.ErrNotFound
	}
	if ok, err = s.creds.VerifyToken(ctx, accountID, token); err != nil {
		return model.Lex{}, err
	}
	if !ok {
		return model.Lex{}, errs.ErrBadToken
	}

	id, err := uuid.NewV4()
	if err != nil {
		return model.Lex{}, err
	}
	l := model.Lex{
		ID:        id,
		AccountID: accountID,
		Content:   content,
		Status:    model.ParseLexStatus(string(status)),
	}
	inserted, err := s.lexes.Create(ctx, &l)
	if err != nil {
		return model.Lex{}, writeErr("post lex", err)
	}
	if !inserted {
		return model.Lex{}, fmt.Errorf("post lex: %w", errs.ErrPersist)
	}
	return l, nil
}

// Feed returns page index of the published feed, newest first. Negative pages read as 0;
// pages past the addressable range read as the last one, which is empty.
func (s *LexServiceImpl) Feed(ctx context.Context, index int) ([]model.LexView, error) {
	switch {
	case index < 0:
		index = 0
	case index > maxFeedIndex:
		index = maxFeedIndex
	}
	return s.lexes.ListPublished(ctx, FeedPageSize, index*FeedPageSize)
}

// ByAccount returns the latest published lexes of accountID.
func (s *LexServiceImpl) ByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]model.LexView, error) {
	ok, err := s.accounts.Exists(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	if limit <= 0 || limit > ProfileLexLimit {
		limit = ProfileLexLimit
	}
	return s.lexes.ListByAccount(ctx, accountID, limit)
}
