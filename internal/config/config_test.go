package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadCrawler/internal/config"
	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/reveal"
)

func load(t *testing.T, path string) (*config.Config, error) {
	t.Helper()
	v, err := config.New(path)
	require.NoError(t, err)
	return config.Load(v)
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(t, "")
	require.NoError(t, err)

	assert.Equal(t, "leadcrawler", cfg.App.Name)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "https://www.linkedin.com", cfg.Browser.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Browser.Timeout)
	assert.Equal(t, reveal.DefaultMaxSteps, cfg.Reveal.MaxSteps)
	assert.Equal(t, 2*time.Second, cfg.Reveal.StepDelay)
	assert.Equal(t, reveal.StrategyGraduated, cfg.Reveal.Strategy)
	assert.Equal(t, reveal.DefaultEndPhrases, cfg.Reveal.EndPhrases)
	assert.Equal(t, kv.BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, kv.DefaultSQLitePath, cfg.Storage.SQLitePath)
	assert.False(t, cfg.Storage.ResetStatusOnSave)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "@every 2h", cfg.Schedule.Spec)
	assert.Equal(t, 1, cfg.LinkedIn.MaxPages)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
logger:
  level: warn
browser:
  headless: false
linkedin:
  query: "platform engineer"
  max_pages: 3
reveal:
  max_steps: 4
  step_delay: 750ms
  strategy: jump
storage:
  backend: memory
  reset_status_on_save: true
`
	path := filepath.Join(dir, "crawler.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("LINKEDIN_EMAIL", "me@example.com")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9999")

	cfg, err := load(t, path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logger.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "platform engineer", cfg.LinkedIn.Query)
	assert.Equal(t, "me@example.com", cfg.LinkedIn.Email)
	assert.Equal(t, 3, cfg.LinkedIn.MaxPages)
	assert.Equal(t, 4, cfg.Reveal.MaxSteps)
	assert.Equal(t, 750*time.Millisecond, cfg.Reveal.StepDelay)
	assert.Equal(t, reveal.StrategyJump, cfg.Reveal.Strategy)
	assert.Equal(t, kv.BackendMemory, cfg.Storage.Backend)
	assert.True(t, cfg.Storage.ResetStatusOnSave)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Address)
}

func TestLoad_DebugRaisesLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_DEBUG", "true")

	cfg, err := load(t, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "etcd"}},
		{"redis without url", map[string]string{"STORAGE_BACKEND": "redis"}},
		{"unknown strategy", map[string]string{"REVEAL_STRATEGY": "bounce"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(t, "")
			require.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}
