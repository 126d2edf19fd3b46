package nonce

import (
	"context"
	"sync"
	"time"
)

// Delay between sweeps of the expired-entry janitor.
const defaultSweepInterval = 5 * time.Minute

type memoryEntry struct {
	value    string
	deadline time.Time
}

// MemoryTokenStore is an in-process TokenStore for tests and single-node
// runs. Expiry is enforced on read; a background janitor reclaims entries
// that are never read.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryTokenStore creates the store and starts its janitor.
func NewMemoryTokenStore() *MemoryTokenStore {
	s := &MemoryTokenStore{
		entries: make(map[string]memoryEntry),
		stop:    make(chan struct{}),
	}
	go s.sweep(defaultSweepInterval)
	return s
}

// SetEx stores value under key for the given lifetime.
func (s *MemoryTokenStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, deadline: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// TakeDel fetches and deletes key in one step. Expired entries read as
// missing.
func (s *MemoryTokenStore) TakeDel(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, key)

	if time.Now().After(entry.deadline) {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Close stops the janitor.
func (s *MemoryTokenStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryTokenStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, entry := range s.entries {
				if now.After(entry.deadline) {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
