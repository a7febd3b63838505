// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

const (
	StatusCreated  AccountStatus = "C"
	StatusActive   AccountStatus = "A"
	StatusDisabled AccountStatus = "D"
)

// Account is a user profile. Username is stored lowercase; names are title-cased.
type Account struct {
	ID        uuid.UUID
	Username  string
	FirstName string
	LastName  string
	Status    AccountStatus
	Email     *string
	Birthday  *time.Time // date only
	CreatedAt time.Time
}

// Credential holds the password verifier of an account (1:1).
type Credential struct {
	AccountID uuid.UUID
	PwdHash   []byte // Argon2id(password, SaltAuth)
	SaltAuth  []byte // per-account salt
}

// Session is an issued bearer token. Only the SHA-256 of the token is stored.
type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	TokenHash []byte
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Valid reports whether the session can authenticate requests at time now.
func (s Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Tokens is what a client receives after signup or login.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Signup carries the fields accepted by account creation.
type Signup struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
	Email     *string
	Birthday  *time.Time
}

// ProfileUpdate carries the replacement profile; a nil NewPassword keeps the current one.
type ProfileUpdate struct {
	Username    string
	FirstName   string
	LastName    string
	Email       *string
	Birthday    *time.Time
	NewPassword *string
}

// AccountChange is a normalized update handed to storage in one transaction.
type AccountChange struct {
	Account    Account
	Credential *Credential // nil: password unchanged
	KeepToken  []byte      // token hash of the session that survives a password change
}

// FollowAction is the mutation requested on a follow edge.
type FollowAction string

const (
	FollowAdd    FollowAction = "A"
	FollowRemove FollowAction = "D"
)

// ParseFollowAction maps wire values to an action; anything unknown means add.
func ParseFollowAction(s string) FollowAction {
	if FollowAction(s) == FollowRemove {
		return FollowRemove
	}
	return FollowAdd
}

// AccountSummary is the public part of an account shown in lists.
type AccountSummary struct {
	ID        uuid.UUID
	Username  string
	FirstName string
	LastName  string
}

// FollowEntry is one row of a following/followers list.
type FollowEntry struct {
	Account   AccountSummary
	Following bool // the viewer follows this account
}

// LexStatus is the publication state of a lex.
type LexStatus string

const (
	LexPublished LexStatus = "P"
	LexDraft     LexStatus = "R"
	LexDeleted   LexStatus = "D"
)

// ParseLexStatus maps wire values to a status; anything unknown is a draft.
func ParseLexStatus(s string) LexStatus {
	switch LexStatus(s) {
	case LexPublished, LexDraft, LexDeleted:
		return LexStatus(s)
	default:
		return LexDraft
	}
}

// Lex is a short text post.
type Lex struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Content   string
	Status    LexStatus
	PublishAt time.Time
}

// LexView is a lex joined with its author.
type LexView struct {
	Lex    Lex
	Author AccountSummary
}

// Profile is the composed account page.
type Profile struct {
	Account   Account
	Following bool // the viewer follows this account
	Lexes     []LexView
	Follows   []FollowEntry // accounts this account follows
	Followers []FollowEntry
}
