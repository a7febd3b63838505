// Package crypto implements password hashing and bearer token generation.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id cost. One thread keeps a login from monopolizing cores under load.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	SaltLen = 16
)

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Argon2id derives password verifiers stored in login_credentials.
type Argon2id struct{}

// Hash draws a fresh salt and returns the verifier of password under it.
func (a Argon2id) Hash(password string) (hash, salt []byte, err error) {
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return a.derive(password, salt), salt, nil
}

// Verify reports whether password produces hash under salt. The comparison is constant time.
func (a Argon2id) Verify(password string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(a.derive(password, salt), hash) == 1
}

func (Argon2id) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}
