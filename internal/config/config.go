// Package config loads the crawler configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"LeadCrawler/internal/browser"
	"LeadCrawler/internal/extract"
	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/logger"
	"LeadCrawler/internal/reveal"
)

// AppConfig identifies the running build.
type AppConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
	Debug       bool   `mapstructure:"debug" yaml:"debug"`
}

// BrowserConfig configures Chrome and the site it talks to.
type BrowserConfig struct {
	browser.Config `mapstructure:",squash" yaml:",inline"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`
}

// LinkedInConfig holds the account and search used by the scrape command.
type LinkedInConfig struct {
	Email    string `mapstructure:"email" yaml:"email"`
	Password string `mapstructure:"password" yaml:"-"`
	Query    string `mapstructure:"query" yaml:"query"`
	GeoURN   string `mapstructure:"geo_urn" yaml:"geo_urn"`
	MaxPages int    `mapstructure:"max_pages" yaml:"max_pages"`
	DumpHTML bool   `mapstructure:"dump_html" yaml:"dump_html"`
}

// RevealConfig bounds the scroll phase of a full-page scrape.
type RevealConfig struct {
	reveal.Options `mapstructure:",squash" yaml:",inline"`
	EndPhrases     []string `mapstructure:"end_phrases" yaml:"end_phrases"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	kv.Config         `mapstructure:",squash" yaml:",inline"`
	ResetStatusOnSave bool `mapstructure:"reset_status_on_save" yaml:"reset_status_on_save"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ScheduleConfig drives the watch command.
type ScheduleConfig struct {
	Spec                string `mapstructure:"spec" yaml:"spec"`
	RespectWorkingHours bool   `mapstructure:"respect_working_hours" yaml:"respect_working_hours"`
}

// ExportConfig sets where CSV exports are written.
type ExportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// Config is the whole configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Logger   logger.Config  `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LinkedIn LinkedInConfig `mapstructure:"linkedin" yaml:"linkedin"`
	Reveal   RevealConfig   `mapstructure:"reveal" yaml:"reveal"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`
	Export   ExportConfig   `mapstructure:"export" yaml:"export"`
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// New returns a viper instance with defaults, environment bindings and, when
// present, the config file applied. An empty path searches ./config.yaml and
// ./config/config.yaml; a missing file is not an error.
func New(path string) (*viper.Viper, error) {
	// A missing .env is normal; variables may come from the real environment.
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	SetDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case path == "" && errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}
	return v, nil
}

// SetDefaults registers the default of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app", map[string]any{
		"name":        "leadcrawler",
		"environment": "production",
		"debug":       false,
	})

	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"encoding":    "console",
		"development": false,
	})

	v.SetDefault("browser", map[string]any{
		"headless":   true,
		"exec_path":  "",
		"user_agent": "",
		"lang":       "en-US",
		"timeout":    "15m",
		"base_url":   extract.DefaultBaseURL,
	})

	v.SetDefault("linkedin", map[string]any{
		"email":     "",
		"password":  "",
		"query":     "",
		"geo_urn":   "",
		"max_pages": 1,
		"dump_html": false,
	})

	v.SetDefault("reveal", map[string]any{
		"max_steps":    reveal.DefaultMaxSteps,
		"step_delay":   reveal.DefaultStepDelay.String(),
		"target_count": 0,
		"strategy":     string(reveal.StrategyGraduated),
		"end_phrases":  reveal.DefaultEndPhrases,
	})

	v.SetDefault("storage", map[string]any{
		"backend":              kv.BackendSQLite,
		"sqlite_path":          kv.DefaultSQLitePath,
		"redis_url":            "",
		"redis_namespace":      kv.DefaultRedisNamespace,
		"reset_status_on_save": false,
	})

	v.SetDefault("server", map[string]any{
		"address":       ":8080",
		"read_timeout":  "15s",
		"write_timeout": "5m",
		"idle_timeout":  "60s",
	})

	v.SetDefault("schedule", map[string]any{
		"spec":                  "@every 2h",
		"respect_working_hours": true,
	})

	v.SetDefault("export", map[string]any{
		"dir": "data",
	})
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"app.environment":     {"APP_ENV"},
		"app.debug":           {"APP_DEBUG"},
		"logger.level":        {"LOG_LEVEL"},
		"logger.encoding":     {"LOG_FORMAT"},
		"browser.exec_path":   {"CHROME_PATH"},
		"linkedin.email":      {"LINKEDIN_EMAIL"},
		"linkedin.password":   {"LINKEDIN_PASSWORD"},
		"storage.backend":     {"STORAGE_BACKEND"},
		"storage.sqlite_path": {"SQLITE_PATH"},
		"storage.redis_url":   {"REDIS_URL"},
		"server.address":      {"SERVER_ADDRESS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes and validates v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if cfg.App.Debug {
		cfg.Logger.Level = "debug"
	}
	if cfg.App.Environment == "development" {
		cfg.Logger.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the components cannot recover from.
func (c *Config) Validate() error {
	if _, err := reveal.ParseStrategy(string(c.Reveal.Strategy)); err != nil {
		return fmt.Errorf("%w: reveal.strategy %q", ErrInvalid, c.Reveal.Strategy)
	}
	if c.Reveal.MaxSteps < 0 {
		return fmt.Errorf("%w: reveal.max_steps must not be negative", ErrInvalid)
	}
	switch c.Storage.Backend {
	case kv.BackendMemory, kv.BackendSQLite:
	case kv.BackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%w: storage.redis_url is required for the redis backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Server.Address == "" {
		return fmt.Errorf("%w: server.address is required", ErrInvalid)
	}
	if c.LinkedIn.MaxPages < 1 {
		c.LinkedIn.MaxPages = 1
	}
	return nil
}
