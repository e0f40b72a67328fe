package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/byceps/byceps-sub001/internal/services"
)

const (
	sessionKeyPrefix     = "session:"
	userSessionKeyPrefix = "user_sessions:"
	scanBatch            = 500
	defaultSessionTTL    = 30 * 24 * time.Hour
)

// RedisStore keeps session:<token> keys plus a user_sessions:<user> set
// per user.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	clock  func() time.Time
}

var _ services.SessionStore = (*RedisStore)(nil)

// RedisOption customises the Redis store.
type RedisOption func(*RedisStore)

// WithTTL sets how long new sessions live.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore wraps a Redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("sessions: redis client is required")
	}
	store := &RedisStore{client: client, ttl: defaultSessionTTL, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func userSessionsKey(userID string) string { return userSessionKeyPrefix + userID }

func (s *RedisStore) Create(ctx context.Context, userID string) (Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, errors.New("sessions: user id is required")
	}
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	session := Session{Token: token, UserID: userID, CreatedAt: s.clock().UTC()}
	data, err := json.Marshal(session)
	if err != nil {
		return Session{}, fmt.Errorf("sessions: encode: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(token), data, s.ttl)
		pipe.SAdd(ctx, userSessionsKey(userID), token)
		pipe.Expire(ctx, userSessionsKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("sessions: create: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Find(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("sessions: find: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("sessions: decode: %w", err)
	}
	return session, nil
}

// DeleteAll scans and removes every session key and user index. The count
// covers session keys only.
func (s *RedisStore) DeleteAll(ctx context.Context) (int, error) {
	removed, err := s.deleteMatching(ctx, sessionKeyPrefix+"*")
	if err != nil {
		return removed, err
	}
	if _, err := s.deleteMatching(ctx, userSessionKeyPrefix+"*"); err != nil {
		return removed, err
	}
	return removed, nil
}

func (s *RedisStore) deleteMatching(ctx context.Context, pattern string) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("sessions: scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("sessions: delete: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (s *RedisStore) DeleteForUser(ctx context.Context, userID string) (int, error) {
	index := userSessionsKey(userID)
	tokens, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return 0, fmt.Errorf("sessions: list sessions of %s: %w", userID, err)
	}
	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}

	var removed *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			removed = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, index)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sessions: delete sessions of %s: %w", userID, err)
	}
	if removed == nil {
		return 0, nil
	}
	return int(removed.Val()), nil
}
