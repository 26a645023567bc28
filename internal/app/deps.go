package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"judge-evals/internal/apperr"
	"judge-evals/internal/config"
	"judge-evals/internal/evaluation"
	"judge-evals/internal/events"
	"judge-evals/internal/llm"
	"judge-evals/internal/logger"
	"judge-evals/internal/metrics"
	"judge-evals/internal/store"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config     config.Config
	Log        *slog.Logger
	Store      store.Store
	Publisher  events.Publisher
	Summarizer llm.Summarizer
	Metrics    *metrics.Manager
	Service    *evaluation.Service

	closers []func() error
}

// Build loads env, config, and shared components.
func Build() (Deps, error) {
	cfg, log, err := Load()
	if err != nil {
		return Deps{}, err
	}
	return BuildFrom(cfg, log)
}

// Load reads an optional .env file, then the configuration, and returns the
// logger it describes.
func Load() (config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	return cfg, logger.New(cfg.LogLevel, cfg.LogFormat), nil
}

// BuildFrom wires components from an already loaded configuration.
func BuildFrom(cfg config.Config, log *slog.Logger) (Deps, error) {
	summarizer, err := buildSummarizer(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	st, err := buildStore(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
	}
	pub, closePub, err := buildPublisher(cfg, log)
	if err != nil {
		_ = st.Close()
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}
	m := metrics.NewManager()
	svc := evaluation.New(st, log,
		evaluation.WithPublisher(pub),
		evaluation.WithMetrics(m),
		evaluation.WithTimeout(cfg.LLMTimeout),
	)
	return Deps{
		Config:     cfg,
		Log:        log,
		Store:      st,
		Publisher:  pub,
		Summarizer: summarizer,
		Metrics:    m,
		Service:    svc,
		closers:    []func() error{closePub, st.Close},
	}, nil
}

// Close releases the event connection and the store.
func (d Deps) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, apperr.Config("DB_URL is required when STORE_PROVIDER=postgres")
		}
		db, err := store.NewPostgres(cfg.DBURL, cfg.DBDriver)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store", "driver", cfg.DBDriver)
		return db, nil
	case "sqlite":
		db, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		log.Info("using SQLite store", "path", cfg.SQLitePath)
		return db, nil
	case "redis":
		rs, err := store.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
		log.Info("using Redis store", "addr", cfg.RedisAddr)
		return rs, nil
	default:
		return nil, apperr.Config(fmt.Sprintf("invalid STORE_PROVIDER: %s (valid options: postgres, sqlite, redis)", cfg.StoreProvider))
	}
}

func buildPublisher(cfg config.Config, log *slog.Logger) (events.Publisher, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.EventsProvider {
	case "nats":
		if cfg.QueueURL == "" {
			return nil, nil, apperr.Config("QUEUE_URL is required when EVENTS_PROVIDER=nats")
		}
		bus, err := events.Connect(log, cfg.QueueURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("publishing evaluation events to NATS")
		return bus, bus.Close, nil
	case "none", "":
		return events.NoOp{}, noClose, nil
	default:
		return nil, nil, apperr.Config(fmt.Sprintf("invalid EVENTS_PROVIDER: %s (valid options: nats, none)", cfg.EventsProvider))
	}
}

func buildSummarizer(cfg config.Config, log *slog.Logger) (llm.Summarizer, error) {
	var s llm.Summarizer
	switch cfg.LLMProvider {
	case "ollama":
		s = llm.NewLocalClient(llm.LocalConfig{
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
			APIKey:  cfg.LLMAPIKey,
			Timeout: cfg.LLMTimeout,
		})
	case "openai":
		if cfg.LLMAPIKey == "" {
			return nil, apperr.Config("LLM_API_KEY is required when LLM_PROVIDER=openai")
		}
		s = llm.NewLocalClient(llm.LocalConfig{
			Name:    "openai",
			BaseURL: orDefault(cfg.LLMBaseURL, defaultOpenAIBaseURL),
			Model:   orDefault(cfg.LLMModel, defaultOpenAIModel),
			APIKey:  cfg.LLMAPIKey,
			Timeout: cfg.LLMTimeout,
		})
	case "http":
		if cfg.LLMAPIKey == "" {
			return nil, apperr.Config("LLM_API_KEY is required when LLM_PROVIDER=http")
		}
		s = llm.NewHTTPProvider(llm.HTTPConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
	case "anthropic":
		client, err := llm.NewAnthropicClient(llm.AnthropicConfig{
			BaseURL: cfg.LLMBaseURL,
			APIKey:  cfg.LLMAPIKey,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return nil, err
		}
		s = client
	default:
		return nil, apperr.Config(fmt.Sprintf("invalid LLM_PROVIDER: %s (valid options: ollama, openai, http, anthropic)", cfg.LLMProvider))
	}

	if cfg.LLMRateLimit > 0 {
		burst := cfg.LLMRateBurst
		if burst < 1 {
			burst = 1
		}
		s = llm.WithRateLimit(s, rate.NewLimiter(rate.Limit(cfg.LLMRateLimit), burst))
	}
	log.Info("using summarizer", "provider", cfg.LLMProvider, "model", cfg.LLMModel, "timeout", cfg.LLMTimeout)
	return llm.WithTracing(s, cfg.LLMProvider), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
