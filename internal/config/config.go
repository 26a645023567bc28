package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration. It is loaded once at startup and passed
// into constructors.
type Config struct {
	// Server
	Port      int    `env:"PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // "json" or "text"

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres", "sqlite" or "redis"
	DBURL         string `env:"DB_URL"`
	DBDriver      string `env:"DB_DRIVER" envDefault:"pgx"` // "pgx" or "postgres" (lib/pq)
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"evaluations.sqlite"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Events
	EventsProvider string `env:"EVENTS_PROVIDER" envDefault:"none"` // "nats" or "none"
	QueueURL       string `env:"QUEUE_URL"`

	// Summarization
	LLMProvider  string        `env:"LLM_PROVIDER" envDefault:"ollama"` // "ollama", "openai", "http" or "anthropic"
	LLMBaseURL   string        `env:"LLM_BASE_URL"`
	LLMModel     string        `env:"LLM_MODEL"`
	LLMAPIKey    string        `env:"LLM_API_KEY"`
	LLMTimeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"10s"`
	LLMRateLimit float64       `env:"LLM_RATE_LIMIT" envDefault:"0"`
	LLMRateBurst int           `env:"LLM_RATE_BURST" envDefault:"1"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
