package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/byceps/byceps-sub001/internal/services"
)

const (
	redisPayloadField   = "payload"
	redisReadCount      = 10
	defaultRedisBlock   = 5 * time.Second
	defaultRedisMinIdle = time.Minute
	defaultStreamMaxLen = 10000
)

// RedisQueue appends job envelopes to a Redis stream.
type RedisQueue struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	clock  func() time.Time
}

var _ services.JobQueue = (*RedisQueue)(nil)

// NewRedisQueue constructs a stream-backed job queue.
func NewRedisQueue(client redis.UniversalClient, stream string) (*RedisQueue, error) {
	if client == nil || strings.TrimSpace(stream) == "" {
		return nil, errors.New("redis job queue: client and stream are required")
	}
	return &RedisQueue{client: client, stream: stream, maxLen: defaultStreamMaxLen, clock: time.Now}, nil
}

// Enqueue adds the job with XADD, trimming the stream approximately.
func (q *RedisQueue) Enqueue(ctx context.Context, job services.Job) (string, error) {
	env, err := NewEnvelope(job, q.clock())
	if err != nil {
		return "", err
	}
	data, err := env.Encode()
	if err != nil {
		return "", err
	}
	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job": env.Name, redisPayloadField: string(data)},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("redis job queue: xadd %s: %w", env.Name, err)
	}
	return env.ID, nil
}

// RedisConsumer reads the stream as a member of a consumer group. Failed
// jobs stay pending and are reclaimed once idle for MinIdle.
type RedisConsumer struct {
	client     redis.UniversalClient
	stream     string
	group      string
	consumer   string
	dispatcher *Dispatcher
	logger     *zap.Logger

	Block   time.Duration
	MinIdle time.Duration
}

// NewRedisConsumer binds a consumer group member to a dispatcher.
func NewRedisConsumer(client redis.UniversalClient, stream, group, consumer string, dispatcher *Dispatcher, logger *zap.Logger) (*RedisConsumer, error) {
	if client == nil || dispatcher == nil {
		return nil, errors.New("redis job consumer: client and dispatcher are required")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("redis job consumer: stream, group and consumer are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisConsumer{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		dispatcher: dispatcher,
		logger:     logger,
		Block:      defaultRedisBlock,
		MinIdle:    defaultRedisMinIdle,
	}, nil
}

// Run creates the group if needed and processes messages until ctx ends.
func (c *RedisConsumer) Run(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("redis job consumer: create group: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.reclaim(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("reclaiming pending jobs failed", zap.Error(err))
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, ">"},
			Count:    redisReadCount,
			Block:    c.Block,
		}).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("reading job stream failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, stream := range streams {
			c.handle(ctx, stream.Messages)
		}
	}
}

func (c *RedisConsumer) reclaim(ctx context.Context) error {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  c.MinIdle,
		Start:    "0-0",
		Count:    redisReadCount,
	}).Result()
	if err != nil {
		return err
	}
	c.handle(ctx, messages)
	return nil
}

func (c *RedisConsumer) handle(ctx context.Context, messages []redis.XMessage) {
	for _, msg := range messages {
		payload, _ := msg.Values[redisPayloadField].(string)
		env, err := DecodeEnvelope([]byte(payload))
		if err == nil {
			err = c.dispatcher.Dispatch(ctx, env)
			if err != nil && !dropped(err) {
				// stays pending until reclaimed
				continue
			}
		}
		if err != nil {
			c.logger.Error("dropping job message", zap.String("message_id", msg.ID), zap.Error(err))
		}
		if ackErr := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); ackErr != nil {
			c.logger.Warn("acknowledging job failed", zap.String("message_id", msg.ID), zap.Error(ackErr))
		}
	}
}
