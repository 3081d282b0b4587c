package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv             string        `envconfig:"APP_ENV" default:"development" validate:"oneof=development staging production test"`
	AppAddr            string        `envconfig:"APP_ADDR" default:":8080" validate:"required"`
	AppReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s" validate:"gt=0"`
	AppWriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s" validate:"gt=0"`
	AppShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	PGDSN string `envconfig:"PG_DSN" required:"true" validate:"required"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379" validate:"required"`

	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"300" validate:"gt=0"`
	RBACCacheTTL       time.Duration `envconfig:"RBAC_CACHE_TTL" default:"5m" validate:"gte=0"`

	BudgetCloseCron    string        `envconfig:"BUDGET_CLOSE_CRON" default:"5 0 * * *" validate:"required"`
	BudgetCloseLockTTL time.Duration `envconfig:"BUDGET_CLOSE_LOCK_TTL" default:"2m" validate:"gt=0"`
	WorkerConcurrency  int           `envconfig:"WORKER_CONCURRENCY" default:"10" validate:"gt=0"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
