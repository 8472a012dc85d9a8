package quizcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-failedq/internal/generator"
)

const keyPrefix = "failedq:quiz:"

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return c, nil
}

func (s *RedisStore) Put(ctx context.Context, d generator.Descriptor) (string, error) {
	val, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encode descriptor: %w", err)
	}
	token := newToken()
	if err := s.client.Set(ctx, keyPrefix+token, val, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("cache descriptor: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (generator.Descriptor, error) {
	raw, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return generator.Descriptor{}, ErrNotFound
	}
	if err != nil {
		return generator.Descriptor{}, fmt.Errorf("read descriptor: %w", err)
	}
	var d generator.Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return generator.Descriptor{}, fmt.Errorf("decode descriptor: %w", err)
	}
	return d, nil
}
