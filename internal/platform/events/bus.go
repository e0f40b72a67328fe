// Package events fans committed shop order events out to in-process
// subscribers and external brokers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/byceps/byceps-sub001/internal/domain"
	"github.com/byceps/byceps-sub001/internal/services"
)

// Message is the broker-neutral form of an event.
type Message struct {
	Name       string
	Key        string
	OccurredAt time.Time
	Data       []byte
}

// NewMessage encodes event as JSON keyed by its order id.
func NewMessage(event domain.ShopOrderEvent) (Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("events: encode %s: %w", event.EventName(), err)
	}
	base := event.Base()
	return Message{
		Name:       event.EventName(),
		Key:        base.OrderID,
		OccurredAt: base.OccurredAt.UTC(),
		Data:       data,
	}, nil
}

func (m Message) attributes() map[string]string {
	return map[string]string{
		"event":       m.Name,
		"order_id":    m.Key,
		"occurred_at": m.OccurredAt.Format(time.RFC3339Nano),
	}
}

// Sink forwards messages to an external broker.
type Sink interface {
	Name() string
	Send(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber reacts to events in process.
type Subscriber func(ctx context.Context, event domain.ShopOrderEvent) error

// Bus implements the engine's EventPublisher port.
type Bus struct {
	mu          sync.RWMutex
	subscribers []Subscriber
	sinks       []Sink
	logger      *zap.Logger
}

var _ services.EventPublisher = (*Bus)(nil)

// NewBus creates a bus forwarding to sinks.
func NewBus(logger *zap.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{sinks: sinks, logger: logger}
}

// Subscribe adds an in-process subscriber. Subscribers run in registration
// order before the broker fan-out.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, sub)
}

// Publish delivers the event to every subscriber and sink. A failing
// subscriber or sink does not stop the others; all failures are joined.
func (b *Bus) Publish(ctx context.Context, event domain.ShopOrderEvent) error {
	if event == nil {
		return errors.New("events: nil event")
	}
	b.mu.RLock()
	subscribers := append([]Subscriber(nil), b.subscribers...)
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	var errs []error
	for _, sub := range subscribers {
		if err := sub(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(sinks) > 0 {
		msg, err := NewMessage(event)
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		sinkErrs := make([]error, len(sinks))
		var group errgroup.Group
		for i, sink := range sinks {
			group.Go(func() error {
				if err := sink.Send(ctx, msg); err != nil {
					sinkErrs[i] = fmt.Errorf("events: sink %s: %w", sink.Name(), err)
					b.logger.Warn("event sink failed",
						zap.String("sink", sink.Name()),
						zap.String("event", msg.Name),
						zap.String("order_id", msg.Key),
						zap.Error(err))
				}
				return nil
			})
		}
		_ = group.Wait()
		errs = append(errs, sinkErrs...)
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, sink := range b.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: close %s: %w", sink.Name(), err))
		}
	}
	b.sinks = nil
	return errors.Join(errs...)
}
