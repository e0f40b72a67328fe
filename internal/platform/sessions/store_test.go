package sessions

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMemoryStoreDeleteForUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "user-1")
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, other.Token)

	removed, err := store.DeleteForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = store.Find(ctx, first.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	found, err := store.Find(ctx, other.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", found.UserID)
}

func TestMemoryStoreDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		userID := fmt.Sprintf("user-%d", i%4)
		g.Go(func() error {
			_, err := store.Create(ctx, userID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	removed, err := store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, removed)

	removed, err = store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCreateRequiresUser(t *testing.T) {
	_, err := NewMemoryStore().Create(context.Background(), "  ")
	assert.Error(t, err)
}
