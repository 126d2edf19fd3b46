package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTokenStore keeps nonce mappings in Redis with native key expiry,
// shared across every relay node and with the web tier that mints nonces.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore wraps an existing Redis client.
func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

// SetEx stores value under key with the given lifetime.
func (s *RedisTokenStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// TakeDel atomically fetches and deletes key via GETDEL, so concurrent
// resolvers of the same nonce cannot both succeed.
func (s *RedisTokenStore) TakeDel(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.GetDel(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis getdel %q: %w", key, err)
	}
	return value, true, nil
}
