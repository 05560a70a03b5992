// Package kv is the key/value persistence used by the lead store. Each key
// holds one opaque document; callers own the encoding.
package kv

import (
	"context"
	"errors"
	"fmt"
)

// Store is an asynchronous key/value store.
type Store interface {
	// Get returns the value at key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("kv: unknown backend")

// Config selects and configures a backend.
type Config struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisURL   string `mapstructure:"redis_url" yaml:"redis_url"`
	RedisKeyNS string `mapstructure:"redis_namespace" yaml:"redis_namespace"`
}

// Open builds the Store named by cfg.Backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyNS)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
