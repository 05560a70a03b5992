package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"LeadCrawler/internal/logger"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     logger.Config
		wantErr bool
	}{
		{name: "defaults", cfg: logger.Config{}},
		{name: "json debug", cfg: logger.Config{Level: "debug", Encoding: "json"}},
		{name: "development", cfg: logger.Config{Level: "warn", Development: true}},
		{name: "bad level", cfg: logger.Config{Level: "loud"}, wantErr: true},
		{name: "bad encoding", cfg: logger.Config{Encoding: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := logger.New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
		})
	}
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := logger.NewFromZap(zap.New(core))

	l.With("component", "extract").Info("found cards", "count", 3, "error", errors.New("boom"), "dangling")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "extract", ctx["component"])
	assert.EqualValues(t, 3, ctx["count"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "<missing>", ctx["dangling"])
}

func TestNoOp(t *testing.T) {
	t.Parallel()

	l := logger.NewNoOp()
	l.Info("ignored", "k", "v")
	assert.Same(t, l, l.With("k", "v"))
}
