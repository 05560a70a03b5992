package store_test

import (
	"context"
	"errors"
	"time"

	"LeadCrawler/internal/kv"
)

var errBackend = errors.New("backend unavailable")

// flakyKV wraps a memory store and fails on demand.
type flakyKV struct {
	*kv.Memory
	failGet bool
	failSet bool
}

func newFlaky() *flakyKV { return &flakyKV{Memory: kv.NewMemory()} }

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errBackend
	}
	return f.Memory.Get(ctx, key)
}

func (f *flakyKV) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errBackend
	}
	return f.Memory.Set(ctx, key, value)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}
