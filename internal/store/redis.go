package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store and Incrementer on Redis. Keys are prefixed so
// several installations can share one database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

// IncrWithExpiry counts with INCR, which is atomic, and attaches the expiry
// when the counter was just created.
func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := s.key(key)
	n, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr kv[%s]: %w", key, err)
	}
	if n == 1 && ttl > 0 {
		if err := s.client.Expire(ctx, k, ttl).Err(); err != nil {
			return n, fmt.Errorf("failed to expire kv[%s]: %w", key, err)
		}
	}
	return n, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
