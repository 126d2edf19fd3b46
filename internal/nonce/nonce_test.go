package nonce

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	tokens := NewMemoryTokenStore()
	t.Cleanup(func() { _ = tokens.Close() })
	return New(tokens, ttl, zerolog.Nop())
}

func TestIssueResolveRoundTrip(t *testing.T) {
	s := newTestStore(t, DefaultTTL)
	ctx := context.Background()

	token, err := s.Issue(ctx, 42)
	require.NoError(t, err)

	userID, ok, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), userID)
}

func TestIssueRefusesEmptyIdentity(t *testing.T) {
	s := newTestStore(t, DefaultTTL)

	_, err := s.Issue(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = s.Issue(context.Background(), -7)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestTokenShape(t *testing.T) {
	s := newTestStore(t, DefaultTTL)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := s.Issue(context.Background(), 1)
		require.NoError(t, err)

		assert.Len(t, token, tokenLength)
		for _, r := range token {
			assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
		}
		assert.False(t, seen[token], "token repeated: %s", token)
		seen[token] = true
	}
}

func TestResolveConsumesToken(t *testing.T) {
	s := newTestStore(t, DefaultTTL)
	ctx := context.Background()

	token, err := s.Issue(ctx, 7)
	require.NoError(t, err)

	_, ok, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)

	// Second resolution of the same nonce must fail.
	_, ok, err = s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveUnknownOrEmpty(t *testing.T) {
	s := newTestStore(t, DefaultTTL)
	ctx := context.Background()

	_, ok, err := s.Resolve(ctx, "neverissued")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Resolve(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveExpiredToken(t *testing.T) {
	s := newTestStore(t, time.Millisecond)
	ctx := context.Background()

	token, err := s.Issue(ctx, 42)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, ok, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewDefaultsTTL(t *testing.T) {
	s := newTestStore(t, 0)
	assert.Equal(t, DefaultTTL, s.TTL())
}
