package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written to Redis.
const DefaultRedisNamespace = "leadcrawler:"

const redisPingTimeout = 5 * time.Second

// ErrEmptyRedisURL is returned when the redis backend has no URL.
var ErrEmptyRedisURL = errors.New("kv: redis url is required")

// Redis is a Store backed by plain Redis string keys.
type Redis struct {
	client *redis.Client
	ns     string
}

// OpenRedis connects to rawURL (redis://[:password@]host:port/db) and pings it.
func OpenRedis(ctx context.Context, rawURL, namespace string) (*Redis, error) {
	if rawURL == "" {
		return nil, ErrEmptyRedisURL
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("kv: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("kv: redis ping failed: %w", err)
	}
	return NewRedis(client, namespace), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	return &Redis{client: client, ns: namespace}
}

// Get reads the namespaced key. redis.Nil is reported as ok == false.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.ns+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv: redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set writes value under the namespaced key with no expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.ns+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: redis set %s: %w", key, err)
	}
	return nil
}

// Remove deletes the namespaced key.
func (r *Redis) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.ns+key).Err(); err != nil {
		return fmt.Errorf("kv: redis del %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
