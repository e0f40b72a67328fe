//go:build integration

package idempotency

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStoreLifecycle(t *testing.T) {
	addr := os.Getenv("SHOP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHOP_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 14})
	t.Cleanup(func() {
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})

	store := NewRedisStore(client)
	now := time.Now()
	const key = "order-key|admin-1"

	res, err := store.Reserve(ctx, key, "fp-1", now, time.Minute)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", res.State)
	}

	res, err = store.Reserve(ctx, key, "fp-1", now, time.Minute)
	if err != nil {
		t.Fatalf("second reserve: %v", err)
	}
	if res.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %v", res.State)
	}

	if err := store.SaveResponse(ctx, key, "fp-1", Response{Status: 201, Body: []byte(`{"ok":true}`)}, now, time.Minute); err != nil {
		t.Fatalf("save response: %v", err)
	}
	res, err = store.Reserve(ctx, key, "fp-1", now, time.Minute)
	if err != nil {
		t.Fatalf("replay reserve: %v", err)
	}
	if res.State != ReservationStateCompleted || res.Record.ResponseStatus != 201 {
		t.Fatalf("expected completed record with 201, got %+v", res)
	}

	if _, err := store.Reserve(ctx, key, "fp-2", now, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	if err := store.Release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	res, err = store.Reserve(ctx, key, "fp-2", now, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected fresh reservation after release, got %+v, %v", res, err)
	}
}
