package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName        = "ClearBook"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultBaseCurrency   = "USD"
	defaultKafkaTopic     = "transaction.completed"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
)

// Config captures application runtime configuration loaded from environment
// variables, with an optional .env file layered underneath.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	BaseCurrency   string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	KafkaTopic     string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration from the environment. DATABASE_URL and REDIS_URL
// may be empty in development, which selects the in-memory store and disables
// the idempotency cache; outside development both are required.
func Load() (Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BaseCurrency:   strings.ToUpper(getEnv("BASE_CURRENCY", defaultBaseCurrency)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaTopic:     getEnv("KAFKA_TOPIC", defaultKafkaTopic),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, broker)
			}
		}
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.ShutdownPeriod = d
	}

	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
		}
		cfg.IdempotencyTTL = d
	}

	if len(cfg.BaseCurrency) != 3 {
		return Config{}, fmt.Errorf("BASE_CURRENCY must be a 3-letter code, got %q", cfg.BaseCurrency)
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
