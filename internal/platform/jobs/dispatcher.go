package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/services"
)

var (
	// ErrUnknownJob is returned for envelopes no handler is registered for.
	ErrUnknownJob = errors.New("jobs: no handler registered")
	// ErrPermanent marks handler failures that a retry cannot fix.
	ErrPermanent = errors.New("jobs: permanent failure")
)

// dropped reports whether a failed message should be acknowledged anyway.
func dropped(err error) bool {
	return errors.Is(err, ErrUnknownJob) || errors.Is(err, ErrPermanent)
}

// Envelope is the wire form of a queued job.
type Envelope struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Args       map[string]any `json:"args"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// NewEnvelope assigns an id and timestamp to a job.
func NewEnvelope(job services.Job, now time.Time) (Envelope, error) {
	name := strings.TrimSpace(job.Name)
	if name == "" {
		return Envelope{}, errors.New("jobs: job name is required")
	}
	return Envelope{
		ID:         ulid.Make().String(),
		Name:       name,
		Args:       job.Args,
		EnqueuedAt: now.UTC(),
	}, nil
}

// Encode serialises the envelope as JSON.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", e.Name, err)
	}
	return data, nil
}

// DecodeEnvelope parses a JSON envelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("jobs: decode envelope: %w", err)
	}
	if env.Name == "" {
		return Envelope{}, errors.New("jobs: envelope without name")
	}
	return env, nil
}

// Handler processes one job. Returning an error asks the transport to
// redeliver.
type Handler func(ctx context.Context, env Envelope) error

// Dispatcher routes envelopes to handlers by job name.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{handlers: make(map[string]Handler), logger: logger}
}

// Register binds a handler to a job name, replacing any previous one.
func (d *Dispatcher) Register(name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = handler
}

// Dispatch runs the handler for env.
func (d *Dispatcher) Dispatch(ctx context.Context, env Envelope) error {
	d.mu.RLock()
	handler, ok := d.handlers[env.Name]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, env.Name)
	}

	start := time.Now()
	err := handler(ctx, env)
	fields := []zap.Field{
		zap.String("job_id", env.ID),
		zap.String("job", env.Name),
		zap.Duration("latency", time.Since(start)),
	}
	if err != nil {
		d.logger.Warn("job failed", append(fields, zap.Error(err))...)
		return err
	}
	d.logger.Info("job done", fields...)
	return nil
}

// InlineQueue runs jobs synchronously in the caller's goroutine. It backs
// the inline jobs driver used by local runs and tests.
type InlineQueue struct {
	dispatcher *Dispatcher
	clock      func() time.Time
}

var _ services.JobQueue = (*InlineQueue)(nil)

// NewInlineQueue wraps a dispatcher.
func NewInlineQueue(dispatcher *Dispatcher) *InlineQueue {
	return &InlineQueue{dispatcher: dispatcher, clock: time.Now}
}

func (q *InlineQueue) Enqueue(ctx context.Context, job services.Job) (string, error) {
	env, err := NewEnvelope(job, q.clock())
	if err != nil {
		return "", err
	}
	// JSON round trip so handlers see the same argument shapes as with a
	// real broker.
	data, err := env.Encode()
	if err != nil {
		return "", err
	}
	if env, err = DecodeEnvelope(data); err != nil {
		return "", err
	}
	if err := q.dispatcher.Dispatch(ctx, env); err != nil {
		return "", err
	}
	return env.ID, nil
}
