package directory

import (
	"context"
	"sync"
)

// StaticDirectory is an in-memory Directory for tests and runs without a
// user database.
type StaticDirectory struct {
	mu    sync.RWMutex
	users map[int64]User
}

// NewStaticDirectory creates a directory holding the given users.
func NewStaticDirectory(users ...User) *StaticDirectory {
	d := &StaticDirectory{users: make(map[int64]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Lookup fetches the user with the given ID.
func (d *StaticDirectory) Lookup(_ context.Context, userID int64) (User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[userID]
	return user, ok, nil
}

// Add inserts or replaces a user record.
func (d *StaticDirectory) Add(user User) {
	d.mu.Lock()
	d.users[user.ID] = user
	d.mu.Unlock()
}
