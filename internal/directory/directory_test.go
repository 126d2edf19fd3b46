package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormDirectoryLookup(t *testing.T) {
	d, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Add(ctx, User{ID: 42, Username: "erose"}))

	user, ok, err := d.Lookup(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "erose", user.Username)

	_, ok, err = d.Lookup(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormDirectoryRejectsDuplicateUsername(t *testing.T) {
	d, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Add(ctx, User{ID: 1, Username: "erose"}))
	assert.Error(t, d.Add(ctx, User{ID: 2, Username: "erose"}))
}

func TestStaticDirectoryLookup(t *testing.T) {
	d := NewStaticDirectory(User{ID: 1, Username: "jsocol"})
	ctx := context.Background()

	user, ok, err := d.Lookup(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "jsocol", user.Username)

	_, ok, err = d.Lookup(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	d.Add(User{ID: 2, Username: "clouserw"})
	user, ok, err = d.Lookup(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "clouserw", user.Username)
}
