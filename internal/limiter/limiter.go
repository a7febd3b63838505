// Package limiter throttles failed logins per (username, client address).
package limiter

import (
	"context"
	"crypto/sha256"
	"net"
	"strings"
	"time"
)

// Key identifies a throttled login source. The client address is stored hashed.
type Key struct {
	Username string
	IPHash   []byte
}

// NewKey builds a key from a lowercase username and a remote address ("host" or "host:port").
func NewKey(username, remoteAddr string) Key {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return Key{Username: strings.ToLower(username), IPHash: sum[:]}
}

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow reports whether login is currently allowed and the remaining lockout.
	Allow(ctx context.Context, k Key) (bool, time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, k Key) error
	// Failure records a failed attempt; it reports whether the key is now locked out.
	Failure(ctx context.Context, k Key) (bool, time.Duration, error)
}

// Nop never throttles. It is used when lockout is disabled.
type Nop struct{}

func (Nop) Allow(context.Context, Key) (bool, time.Duration, error)   { return true, 0, nil }
func (Nop) Success(context.Context, Key) error                        { return nil }
func (Nop) Failure(context.Context, Key) (bool, time.Duration, error) { return false, 0, nil }
