package directory

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDirectory reads users from a SQLite database through gorm. In the full
// deployment the web tier owns this table; the relay only looks IDs up.
type GormDirectory struct {
	db *gorm.DB
}

// OpenSQLite opens (and migrates) the user table at path. Use ":memory:" for
// an ephemeral database.
func OpenSQLite(path string) (*GormDirectory, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("directory: opening %q: %w", path, err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		return nil, fmt.Errorf("directory: migrating user table: %w", err)
	}
	return &GormDirectory{db: db}, nil
}

// Lookup fetches the user with the given ID.
func (d *GormDirectory) Lookup(ctx context.Context, userID int64) (User, bool, error) {
	var user User
	err := d.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("directory: looking up user %d: %w", userID, err)
	}
	return user, true, nil
}

// Add inserts a user record. Exposed for seeding and tests.
func (d *GormDirectory) Add(ctx context.Context, user User) error {
	if err := d.db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("directory: creating user %d: %w", user.ID, err)
	}
	return nil
}
