// Package store keeps leads, the daily activity counter and user settings
// on top of a kv.Store. Each concern is one JSON document under its own key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/logger"
)

// Document keys.
const (
	KeyLeads      = "li_leads"
	KeySettings   = "li_settings"
	KeyDailyStats = "li_daily_stats"
)

// ErrNotFound is returned when a lead id is unknown.
var ErrNotFound = errors.New("store: lead not found")

type options struct {
	log         logger.Interface
	now         func() time.Time
	resetStatus bool
}

// Option configures the stores in this package.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(l logger.Interface) Option {
	return func(o *options) { o.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithResetStatusOnSave makes saves overwrite the stored status with new.
// SaveOne stamps every record as new, replacing any status it carries.
// SaveMany stamps records that carry no status as new and keeps an explicit
// incoming status.
func WithResetStatusOnSave() Option {
	return func(o *options) { o.resetStatus = true }
}

func buildOptions(opts []Option) options {
	o := options{log: logger.NewNoOp(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// readJSON decodes the document at key into dst. ok is false when absent.
func readJSON(ctx context.Context, s kv.Store, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: read %s: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("store: decode %s: %w", key, err)
	}
	return true, nil
}

func writeJSON(ctx context.Context, s kv.Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("store: write %s: %w", key, err)
	}
	return nil
}
