package repository

import (
	"context"

	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// FollowRepository stores directed follow edges (followee, follower).
type FollowRepository interface {
	// Add inserts the edge; inserted is false when it already existed.
	Add(ctx context.Context, followeeID, followerID uuid.UUID) (inserted bool, err error)
	// Remove deletes the edge, reporting matching rows seen before deletion and rows removed.
	Remove(ctx context.Context, followeeID, followerID uuid.UUID) (observed, removed int64, err error)
	// ListFollowing lists accounts followed by accountID, flagged relative to viewerID.
	ListFollowing(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error)
	// ListFollowers lists followers of accountID, flagged relative to viewerID.
	ListFollowers(ctx context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error)
	// IsFollowing reports whether followerID follows followeeID.
	IsFollowing(ctx context.Context, followeeID, followerID uuid.UUID) (bool, error)
}
