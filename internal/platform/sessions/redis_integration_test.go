//go:build integration

package sessions

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func TestRedisStoreRemovesSessions(t *testing.T) {
	ctx := context.Background()
	store, err := NewRedisStore(newRedisClient(t))
	require.NoError(t, err)

	first, err := store.Create(ctx, "user-1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "user-1")
	require.NoError(t, err)
	other, err := store.Create(ctx, "user-2")
	require.NoError(t, err)

	found, err := store.Find(ctx, first.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", found.UserID)

	removed, err := store.DeleteForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	_, err = store.Find(ctx, first.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	removed, err = store.DeleteForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = store.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, err = store.Find(ctx, other.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
