package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// TokenLen is the length of every issued bearer token.
const TokenLen = 64

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewToken returns a TokenLen-character opaque token drawn uniformly from tokenAlphabet.
func NewToken() (string, error) {
	alphabetLen := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, TokenLen)
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}

// HashToken returns the storage key of a token; raw tokens are never persisted.
func HashToken(token string) []byte {
	h := sha256.Sum256([]byte(token))
	return h[:]
}
