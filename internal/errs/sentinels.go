// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Base sentinels. Every error returned by services wraps one of these.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPersist indicates a write that did not take effect (affected rows mismatch).
	ErrPersist = errors.New("write not applied")

	// ErrUnavailable indicates storage was unreachable or timed out; callers may retry.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation")
)

// Specific failures. Each wraps a base sentinel so callers can match either.
var (
	ErrWrongUsername    = fmt.Errorf("unknown username: %w", ErrNotFound)
	ErrWrongPassword    = fmt.Errorf("wrong password: %w", ErrUnauthorized)
	ErrBadToken         = fmt.Errorf("bad token: %w", ErrUnauthorized)
	ErrUsernameTaken    = fmt.Errorf("username taken: %w", ErrAlreadyExists)
	ErrFollowerNotFound = fmt.Errorf("follower: %w", ErrNotFound)
	ErrFolloweeNotFound = fmt.Errorf("followee: %w", ErrNotFound)
	ErrViewerNotFound   = fmt.Errorf("viewer: %w", ErrNotFound)
)
