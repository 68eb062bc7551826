package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jwebster45206/adventure-engine/pkg/engine"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port         string     `env:"PORT" envDefault:"8080"`
	Environment  string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level `env:"-"`

	StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"redis"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"./data/engine.db"`
	DataDir        string        `env:"DATA_DIR" envDefault:"./data"`
	StateTTL       time.Duration `env:"STATE_TTL" envDefault:"24h"`

	AdvanceTurnDelay  time.Duration `env:"ADVANCE_TURN_DELAY" envDefault:"500ms"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"200"`
	RoundsFollowQueue bool          `env:"ROUNDS_FOLLOW_QUEUE" envDefault:"true"`
	EffectLogSize     int           `env:"EFFECT_LOG_SIZE" envDefault:"100"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unsupported storage backend %q (want %q or %q)", c.StorageBackend, BackendRedis, BackendSQLite)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history limit cannot be negative: %d", c.HistoryLimit)
	}
	if c.AdvanceTurnDelay < 0 {
		return fmt.Errorf("advance turn delay cannot be negative: %s", c.AdvanceTurnDelay)
	}
	return nil
}

// RoundPolicy maps ROUNDS_FOLLOW_QUEUE onto the engine's policy.
func (c *Config) RoundPolicy() engine.RoundPolicy {
	if c.RoundsFollowQueue {
		return engine.RoundPolicyQueue
	}
	return engine.RoundPolicyManual
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
