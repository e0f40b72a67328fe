package services

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ServiceLogger is the structured logging hook every service accepts.
type ServiceLogger func(ctx context.Context, event string, fields map[string]any)

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func defaultClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time {
		return clock().UTC()
	}
}

func defaultLogger(logger ServiceLogger) ServiceLogger {
	if logger == nil {
		return func(context.Context, string, map[string]any) {}
	}
	return logger
}

// newULID is used for log entries, tickets and registrations.
func newULID() string {
	return ulid.Make().String()
}

// newUUID is used for orders, line items and articles.
func newUUID() string {
	return uuid.NewString()
}

func defaultIDGenerator(gen func() string, fallback func() string) func() string {
	if gen == nil {
		return fallback
	}
	return gen
}

// actorNow resolves the operation time: the actor's explicit time, else the clock.
func actorNow(actor Actor, clock func() time.Time) time.Time {
	if !actor.Now.IsZero() {
		return actor.Now.UTC()
	}
	return clock()
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	return maps.Clone(src)
}

func ensureMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	return src
}

func valuePtr[T any](v T) *T {
	return &v
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
