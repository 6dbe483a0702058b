package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against a Redis server. This is the backend
// the short-term tier runs on in a shared deployment, where multiple agent
// processes read and write the same namespace.
type RedisStore struct {
	client *redis.Client
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl == KeepTTL {
		// XX so a write racing an expiry cannot resurrect the key. The
		// nil reply for a missing key is the contract's silent no-op,
		// not an error.
		err := s.client.SetArgs(ctx, key, value, redis.SetArgs{
			Mode:    "XX",
			KeepTTL: true,
		}).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis set %s: %w", key, err)
		}
		return nil
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return s.Persist(ctx, key)
	}
	ok, err := s.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Persist(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Persist(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis persist %s: %w", key, err)
	}
	if ok {
		return true, nil
	}
	// PERSIST returns false both for a missing key and for a key that is
	// already persistent; only the former counts as not-found here.
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return exists > 0, nil
}

func (s *RedisStore) Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
	keys, next, err := s.client.Scan(ctx, cursor, pattern, count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, next, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
