package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewToken_LengthAlphabetUniqueness(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		if len(tok) != TokenLen {
			t.Fatalf("len=%d, want=%d", len(tok), TokenLen)
		}
		for _, r := range tok {
			if !strings.ContainsRune(tokenAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, tok)
			}
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestHashToken(t *testing.T) {
	t.Parallel()

	a := HashToken("abc")
	b := HashToken("abc")
	c := HashToken("abd")
	if !bytes.Equal(a, b) || bytes.Equal(a, c) || len(a) != 32 {
		t.Fatalf("hash mismatch/len: %d", len(a))
	}
}
