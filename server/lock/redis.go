package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Daskott/snapcron/shared"
	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
)

const REDIS_CONNECT_ATTEMPTS = 5

type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis & waits (with backoff) until it answers a PING
func NewRedisStore(config shared.RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, errors.New("lock.redis.addr is required for the redis lock backend")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	_, err := backoff.Retry(
		context.Background(),
		func() (string, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			pong, err := client.Ping(ctx).Result()
			if err != nil {
				logg.Warnf("redis at %v is not reachable, retrying: %v", config.Addr, err)
			}
			return pong, err
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(REDIS_CONNECT_ATTEMPTS),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("NewRedisStore: %v", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("RedisStore.Get(%v): %v", key, err)
	}

	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	err := s.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("RedisStore.Set(%v): %v", key, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("RedisStore.Delete(%v): %v", key, err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
