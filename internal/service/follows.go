package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// FollowService defines follow graph operations.
type FollowService interface {
	SetFollow(ctx context.Context, followerID uuid.UUID, token string, followeeID uuid.UUID, action model.FollowAction) error
	ListFollowing(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error)
	ListFollowers(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error)
}

type FollowServiceImpl struct {
	accounts repository.AccountRepository
	follows  repository.FollowRepository
	creds    Credentials
}

var _ FollowService = (*FollowServiceImpl)(nil)

// NewFollowService constructs FollowService.
func NewFollowService(accounts repository.AccountRepository, follows repository.FollowRepository, creds Credentials) *FollowServiceImpl {
	return &FollowServiceImpl{accounts: accounts, follows: follows, creds: creds}
}

// SetFollow adds or removes the edge followee <- follower. Checks run in order:
// follower exists, token valid, followee exists. Both actions are idempotent.
func (s *FollowServiceImpl) SetFollow(ctx context.Context, followerID uuid.UUID, token string, followeeID uuid.UUID, action model.FollowAction) error {
	if err := s.mustExist(ctx, followerID, errs.ErrFollowerNotFound); err != nil {
		return err
	}
	ok, err := s.creds.VerifyToken(ctx, followerID, token)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrBadToken
	}
	if err := s.mustExist(ctx, followeeID, errs.ErrFolloweeNotFound); err != nil {
		return err
	}

	if action == model.FollowRemove {
		observed, removed, err := s.follows.Remove(ctx, followeeID, followerID)
		if err != nil {
			return writeErr("unfollow", err)
		}
		if observed != removed {
			return fmt.Errorf("unfollow: removed %d of %d: %w", removed, observed, errs.ErrPersist)
		}
		return nil
	}

	// An edge that already exists is reported by Add as not inserted; that is still success.
	if _, err := s.follows.Add(ctx, followeeID, followerID); err != nil {
		return writeErr("follow", err)
	}
	return nil
}

// ListFollowing lists the accounts accountID follows.
func (s *FollowServiceImpl) ListFollowing(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	if err := s.checkPair(ctx, accountID, viewerID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowing(ctx, accountID, viewerID)
}

// ListFollowers lists the accounts following accountID.
func (s *FollowServiceImpl) ListFollowers(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	if err := s.checkPair(ctx, accountID, viewerID); err != nil {
		return nil, err
	}
	return s.follows.ListFollowers(ctx, accountID, viewerID)
}

func (s *FollowServiceImpl) checkPair(ctx context.Context, accountID, viewerID uuid.UUID) error {
	if err := s.mustExist(ctx, accountID, errs.ErrNotFound); err != nil {
		return err
	}
	return s.mustExist(ctx, viewerID, errs.ErrViewerNotFound)
}

func (s *FollowServiceImpl) mustExist(ctx context.Context, id uuid.UUID, missing error) error {
	if id == uuid.Nil {
		return missing
	}
	ok, err := s.accounts.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return missing
	}
	return nil
}

// writeErr keeps ErrUnavailable visible to callers and reports every other
// storage failure as a write that did not take effect.
func writeErr(op string, err error) error {
	if errors.Is(err, errs.ErrUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%s: %v: %w", op, err, errs.ErrPersist)
}
