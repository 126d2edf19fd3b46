// Package directory resolves user IDs to account records. The relay only
// ever reads from it: a nonce resolves to a user ID, and the directory turns
// that ID into the username shown in chat.
package directory

import "context"

// User is a directory account record.
type User struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	Username string `gorm:"size:30;uniqueIndex" json:"username"`
}

// Directory looks up users by ID. An unknown ID reports ok=false with no
// error; errors are reserved for backend failures.
type Directory interface {
	Lookup(ctx context.Context, userID int64) (User, bool, error)
}
