//go:build integration

package jobs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byceps/byceps-sub001/internal/services"
)

func TestRedisQueueAndConsumer(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 13})
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	require.NoError(t, client.FlushDB(context.Background()).Err())

	queue, err := NewRedisQueue(client, "shop:jobs:test")
	require.NoError(t, err)

	received := make(chan Envelope, 1)
	dispatcher := NewDispatcher(nil)
	dispatcher.Register(services.JobSendEmail, func(_ context.Context, env Envelope) error {
		received <- env
		return nil
	})
	consumer, err := NewRedisConsumer(client, "shop:jobs:test", "shop-worker", "worker-1", dispatcher, nil)
	require.NoError(t, err)
	consumer.Block = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- consumer.Run(ctx) }()

	id, err := queue.Enqueue(ctx, services.Job{Name: services.JobSendEmail, Args: map[string]any{"subject": "hi"}})
	require.NoError(t, err)

	select {
	case env := <-received:
		assert.Equal(t, id, env.ID)
		assert.Equal(t, "hi", env.Args["subject"])
	case <-ctx.Done():
		t.Fatal("job was not consumed")
	}

	cancel()
	require.NoError(t, <-done)

	pending, err := client.XPending(context.Background(), "shop:jobs:test", "shop-worker").Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}
