package handlers

import (
	"testing"
	"time"
)

func TestWindowLimiterWindow(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("u-1|sf") || !limiter.Allow("u-1|sf") {
		t.Fatal("expected first two calls to pass")
	}
	if limiter.Allow("u-1|sf") {
		t.Fatal("expected third call within window to be rejected")
	}
	if !limiter.Allow("u-2|sf") {
		t.Fatal("expected other key to be independent")
	}

	now = now.Add(61 * time.Second)
	if !limiter.Allow("u-1|sf") {
		t.Fatal("expected window reset")
	}
}

func TestWindowLimiterDisabled(t *testing.T) {
	if limiter := newWindowLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero limit, got %T", limiter)
	}
}
