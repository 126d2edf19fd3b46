// Package nonce implements the one-time token hand-off that binds a chat
// connection to a user identity. The trusted web tier mints a nonce while
// rendering the chat page; the client echoes it back over the socket, and
// resolving it here completes the connection-to-user mapping without ever
// exposing session credentials to page scripts.
package nonce

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// keyPrefix namespaces nonce keys inside the shared token store.
const keyPrefix = "chatnonce:"

// tokenLength is the number of random characters in an issued nonce. Ten
// letters give well over 50 bits of entropy, plenty for a 60-second window.
const tokenLength = 10

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// DefaultTTL is how long an issued nonce stays resolvable.
const DefaultTTL = 60 * time.Second

// ErrNoIdentity is returned when a nonce is requested for no one.
var ErrNoIdentity = errors.New("nonce: refusing to issue a nonce without a user")

// TokenStore is the expiring key/value collaborator nonces live in.
type TokenStore interface {
	// SetEx stores value under key for the given lifetime.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// TakeDel returns the value under key and removes it in the same step.
	// A missing or expired key reports ok=false with no error.
	TakeDel(ctx context.Context, key string) (value string, ok bool, err error)
}

// Store issues and resolves one-time tokens mapping to user IDs.
type Store struct {
	tokens TokenStore
	ttl    time.Duration
	log    zerolog.Logger
}

// New creates a nonce store over the given token store. A non-positive ttl
// falls back to DefaultTTL.
func New(tokens TokenStore, ttl time.Duration, log zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		tokens: tokens,
		ttl:    ttl,
		log:    log.With().Str("component", "nonce").Logger(),
	}
}

// TTL reports the lifetime applied to issued nonces.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh token for userID and stores the mapping with the
// configured expiry.
func (s *Store) Issue(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", ErrNoIdentity
	}

	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("nonce: generating token: %w", err)
	}

	value := strconv.FormatInt(userID, 10)
	if err := s.tokens.SetEx(ctx, keyPrefix+token, value, s.ttl); err != nil {
		return "", fmt.Errorf("nonce: storing token: %w", err)
	}

	s.log.Debug().Int64("user_id", userID).Msg("issued nonce")
	return token, nil
}

// Resolve looks up the user mapped to the given nonce. Each nonce resolves
// successfully at most once: the mapping is consumed atomically on read.
// An absent or expired nonce reports ok=false without an error.
func (s *Store) Resolve(ctx context.Context, nonce string) (int64, bool, error) {
	if nonce == "" {
		return 0, false, nil
	}

	value, ok, err := s.tokens.TakeDel(ctx, keyPrefix+nonce)
	if err != nil {
		return 0, false, fmt.Errorf("nonce: resolving token: %w", err)
	}
	if !ok {
		return 0, false, nil
	}

	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || userID <= 0 {
		s.log.Warn().Str("value", value).Msg("nonce mapped to an unparseable user ID")
		return 0, false, nil
	}

	s.log.Debug().Int64("user_id", userID).Msg("resolved nonce")
	return userID, true, nil
}

func randomToken() (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, tokenLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
