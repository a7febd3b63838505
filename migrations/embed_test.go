package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_ContainsOrderedGooseFiles(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Equal(t, []string{
		"00001_accounts.sql",
		"00002_followers.sql",
		"00003_lexes.sql",
		"00004_auth_limiter.sql",
	}, names)

	for _, n := range names {
		b, err := fs.ReadFile(FS, n)
		require.NoError(t, err)
		s := string(b)
		require.True(t, strings.Contains(s, "-- +goose Up"), n)
		require.True(t, strings.Contains(s, "-- +goose Down"), n)
	}
}

func TestFS_UniquenessEnforcedByStorage(t *testing.T) {
	b, err := fs.ReadFile(FS, "00001_accounts.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "UNIQUE INDEX accounts_username_lower_uq ON accounts (lower(username))")

	b, err = fs.ReadFile(FS, "00002_followers.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "PRIMARY KEY (account_id, follower_id)")
}
