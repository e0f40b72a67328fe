package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/services"
)

// PubSubQueue publishes job envelopes to a Pub/Sub topic.
type PubSubQueue struct {
	topic *pubsub.Topic
	clock func() time.Time
}

var _ services.JobQueue = (*PubSubQueue)(nil)

// NewPubSubQueue constructs a Pub/Sub backed job queue.
func NewPubSubQueue(topic *pubsub.Topic) (*PubSubQueue, error) {
	if topic == nil {
		return nil, errors.New("pubsub job queue: topic is required")
	}
	return &PubSubQueue{topic: topic, clock: time.Now}, nil
}

// Enqueue publishes the job and returns the envelope id once the broker has
// acknowledged it.
func (q *PubSubQueue) Enqueue(ctx context.Context, job services.Job) (string, error) {
	env, err := NewEnvelope(job, q.clock())
	if err != nil {
		return "", err
	}
	data, err := env.Encode()
	if err != nil {
		return "", err
	}

	result := q.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job":   env.Name,
			"jobId": env.ID,
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return "", fmt.Errorf("publish job %s: %w", env.Name, err)
	}
	return env.ID, nil
}

// PubSubConsumer pulls envelopes from a subscription and dispatches them.
type PubSubConsumer struct {
	sub        *pubsub.Subscription
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewPubSubConsumer binds a subscription to a dispatcher.
func NewPubSubConsumer(sub *pubsub.Subscription, dispatcher *Dispatcher, logger *zap.Logger) (*PubSubConsumer, error) {
	if sub == nil || dispatcher == nil {
		return nil, errors.New("pubsub job consumer: subscription and dispatcher are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubConsumer{sub: sub, dispatcher: dispatcher, logger: logger}, nil
}

// Run blocks until ctx is canceled. Undecodable messages are acknowledged
// and dropped; failed jobs are nacked for redelivery.
func (c *PubSubConsumer) Run(ctx context.Context) error {
	err := c.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		env, err := DecodeEnvelope(msg.Data)
		if err != nil {
			c.logger.Error("dropping malformed job message", zap.String("message_id", msg.ID), zap.Error(err))
			msg.Ack()
			return
		}
		if err := c.dispatcher.Dispatch(ctx, env); err != nil {
			if dropped(err) {
				c.logger.Error("dropping job", zap.String("job", env.Name), zap.Error(err))
				msg.Ack()
				return
			}
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pubsub job consumer: %w", err)
	}
	return nil
}
