package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverBadger   = "badger"
)

// Config represents application configuration. Values come from defaults, an
// optional TOML file named by CONFIG_FILE, then environment variables.
type Config struct {
	AppEnv         string `toml:"app_env" validate:"required"`
	Port           string `toml:"port" validate:"required"`
	StoreDriver    string `toml:"store_driver" validate:"oneof=postgres badger"`
	DatabaseURL    string `toml:"database_url" validate:"required_if=StoreDriver postgres"`
	BadgerPath     string `toml:"badger_path"`
	StoragePath    string `toml:"storage_path" validate:"required"`
	StorageBaseURL string `toml:"storage_base_url" validate:"required"`
	GeoIPDBPath    string `toml:"geoip_db_path"`
	CORSOrigin     string `toml:"cors_origin"`

	RateLimitPerMin int `toml:"rate_limit_per_min" validate:"min=0"`

	Queue    QueueConfig    `toml:"queue"`
	Worker   WorkerConfig   `toml:"worker"`
	Provider ProviderConfig `toml:"provider"`

	ReconcileSchedule   string        `toml:"reconcile_schedule"`
	ReconcileStaleAfter time.Duration `toml:"-"`

	HTTPReadTimeout  time.Duration `toml:"-"`
	HTTPWriteTimeout time.Duration `toml:"-"`
	HTTPIdleTimeout  time.Duration `toml:"-"`

	// Seconds mirrors of the durations so they can be set from TOML.
	ReconcileStaleAfterSeconds int `toml:"reconcile_stale_after_seconds" validate:"min=0"`
	HTTPReadTimeoutSeconds     int `toml:"http_read_timeout_seconds" validate:"min=1"`
	HTTPWriteTimeoutSeconds    int `toml:"http_write_timeout_seconds" validate:"min=1"`
	HTTPIdleTimeoutSeconds     int `toml:"http_idle_timeout_seconds" validate:"min=1"`
}

// QueueConfig tunes delivery of work items.
type QueueConfig struct {
	Attempts          int `toml:"attempts" validate:"min=1"`
	BackoffMS         int `toml:"backoff_ms" validate:"min=0"`
	VisibilitySeconds int `toml:"visibility_seconds" validate:"min=1"`
	PollMS            int `toml:"poll_ms" validate:"min=10"`
}

// WorkerConfig tunes the task processor pool.
type WorkerConfig struct {
	Concurrency int `toml:"concurrency" validate:"min=1"`
}

// ProviderConfig holds provider credentials and throttling.
type ProviderConfig struct {
	RatePerSec      float64 `toml:"rate_per_sec" validate:"min=0"`
	OpenAIAPIKey    string  `toml:"openai_api_key"`
	OpenAIBaseURL   string  `toml:"openai_base_url"`
	GeminiAPIKey    string  `toml:"gemini_api_key"`
	AnthropicAPIKey string  `toml:"anthropic_api_key"`
	QwenAPIKey      string  `toml:"qwen_api_key"`
	QwenBaseURL     string  `toml:"qwen_base_url"`
	SyntheticDelay  int     `toml:"synthetic_delay_ms" validate:"min=0"`
}

func defaultConfig() *Config {
	return &Config{
		AppEnv:         "development",
		Port:           "8080",
		StoreDriver:    StoreDriverPostgres,
		BadgerPath:     "./data/badger",
		StoragePath:    "./data/storage",
		CORSOrigin:     "*",

		RateLimitPerMin: 120,

		Queue: QueueConfig{
			Attempts:          3,
			BackoffMS:         1000,
			VisibilitySeconds: 300,
			PollMS:            500,
		},
		Worker:   WorkerConfig{Concurrency: 4},
		Provider: ProviderConfig{RatePerSec: 2, SyntheticDelay: 200},

		ReconcileStaleAfterSeconds: 900,
		HTTPReadTimeoutSeconds:     15,
		HTTPWriteTimeoutSeconds:    30,
		HTTPIdleTimeoutSeconds:     60,
	}
}

// LoadConfig loads configuration and applies defaults where needed.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.BadgerPath = getEnv("BADGER_PATH", cfg.BadgerPath)
	cfg.StoragePath = getEnv("STORAGE_PATH", cfg.StoragePath)
	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", cfg.StorageBaseURL)
	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}
	cfg.GeoIPDBPath = getEnv("GEOIP_DB_PATH", cfg.GeoIPDBPath)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)

	cfg.Queue.Attempts = getEnvInt("QUEUE_ATTEMPTS", cfg.Queue.Attempts)
	cfg.Queue.BackoffMS = getEnvInt("QUEUE_BACKOFF_MS", cfg.Queue.BackoffMS)
	cfg.Queue.VisibilitySeconds = getEnvInt("QUEUE_VISIBILITY_SECONDS", cfg.Queue.VisibilitySeconds)
	cfg.Queue.PollMS = getEnvInt("QUEUE_POLL_MS", cfg.Queue.PollMS)
	cfg.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency)

	cfg.Provider.RatePerSec = getEnvFloat("PROVIDER_RATE_PER_SEC", cfg.Provider.RatePerSec)
	cfg.Provider.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.Provider.OpenAIAPIKey)
	cfg.Provider.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.Provider.OpenAIBaseURL)
	cfg.Provider.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.Provider.GeminiAPIKey)
	cfg.Provider.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", cfg.Provider.AnthropicAPIKey)
	cfg.Provider.QwenAPIKey = getEnv("DASHSCOPE_API_KEY", cfg.Provider.QwenAPIKey)
	cfg.Provider.QwenBaseURL = getEnv("DASHSCOPE_BASE_URL", cfg.Provider.QwenBaseURL)
	cfg.Provider.SyntheticDelay = getEnvInt("SYNTHETIC_DELAY_MS", cfg.Provider.SyntheticDelay)

	cfg.ReconcileSchedule = getEnv("RECONCILE_SCHEDULE", cfg.ReconcileSchedule)
	cfg.ReconcileStaleAfterSeconds = getEnvInt("RECONCILE_STALE_AFTER_SECONDS", cfg.ReconcileStaleAfterSeconds)
	cfg.HTTPReadTimeoutSeconds = getEnvInt("HTTP_READ_TIMEOUT_SECONDS", cfg.HTTPReadTimeoutSeconds)
	cfg.HTTPWriteTimeoutSeconds = getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", cfg.HTTPWriteTimeoutSeconds)
	cfg.HTTPIdleTimeoutSeconds = getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", cfg.HTTPIdleTimeoutSeconds)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.ReconcileStaleAfter = time.Duration(cfg.ReconcileStaleAfterSeconds) * time.Second
	cfg.HTTPReadTimeout = time.Duration(cfg.HTTPReadTimeoutSeconds) * time.Second
	cfg.HTTPWriteTimeout = time.Duration(cfg.HTTPWriteTimeoutSeconds) * time.Second
	cfg.HTTPIdleTimeout = time.Duration(cfg.HTTPIdleTimeoutSeconds) * time.Second
	return cfg, nil
}

// QueueVisibility returns the visibility timeout as a duration.
func (c *Config) QueueVisibility() time.Duration {
	return time.Duration(c.Queue.VisibilitySeconds) * time.Second
}

// QueuePollInterval returns the idle poll interval of queue consumers.
func (c *Config) QueuePollInterval() time.Duration {
	return time.Duration(c.Queue.PollMS) * time.Millisecond
}

// QueueBackoff returns the base retry delay.
func (c *Config) QueueBackoff() time.Duration {
	return time.Duration(c.Queue.BackoffMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
