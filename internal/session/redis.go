package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buffonomics/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis with a server-side TTL per key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    Clock
}

// NewRedisStore returns a store backed by client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func redisKey(token string) string {
	return redisKeyPrefix + token
}

func (s *RedisStore) Issue(ctx context.Context, username string) (Session, error) {
	token, err := NewToken()
	if err != nil {
		return Session{}, err
	}
	if err := s.client.Set(ctx, redisKey(token), username, s.ttl).Err(); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return Session{Token: token, Username: username, ExpiresAt: s.now().Add(s.ttl)}, nil
}

func (s *RedisStore) Validate(ctx context.Context, token string) (string, bool) {
	if token == "" {
		return "", false
	}
	username, err := s.client.Get(ctx, redisKey(token)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "session lookup failed", "error", err)
		}
		return "", false
	}
	return username, true
}

func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, redisKey(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Sweep is a no-op: Redis expires session keys itself.
func (s *RedisStore) Sweep(context.Context) int {
	return 0
}

// Len counts session keys. It scans the keyspace and is meant for diagnostics.
func (s *RedisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n := 0
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}
