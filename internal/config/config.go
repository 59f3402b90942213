package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration loaded from environment variables.
// It is built once in main and handed to every component that needs it;
// nothing else reads the environment. Only AMQP_URL and REDIS_URL are required.
type Config struct {
	// Broker
	AMQPURL         string `envconfig:"AMQP_URL" validate:"required,url"`
	QueueName       string `envconfig:"QUEUE_NAME" default:"notifications" validate:"required"`
	QueueDurable    bool   `envconfig:"QUEUE_DURABLE" default:"false"`
	ConsumerTag     string `envconfig:"CONSUMER_TAG" default:"worker" validate:"required"`
	DeadLetterQueue string `envconfig:"DEAD_LETTER_QUEUE" default:"notifications.dead"`
	Consumers       int    `envconfig:"WORKER_CONSUMERS" default:"1" validate:"min=1"`

	// Key-value store
	RedisURL         string        `envconfig:"REDIS_URL" validate:"required,url"`
	RedisDialTimeout time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisRWTimeout   time.Duration `envconfig:"REDIS_RW_TIMEOUT" default:"2s"`
	RedisMaxRetries  int           `envconfig:"REDIS_MAX_RETRIES" default:"3" validate:"min=-1"`

	OTPTTL time.Duration `envconfig:"OTP_TTL" default:"300s" validate:"gt=0"`

	// External provider; empty means channels only log what they would send.
	ProviderBaseURL string        `envconfig:"PROVIDER_BASE_URL" validate:"omitempty,url"`
	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`

	// Rate limiting: maximum sends per second per channel
	RateLimit int `envconfig:"RATE_LIMIT_PER_CHANNEL" default:"100" validate:"min=1"`

	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"5" validate:"min=1"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`

	// Dispatch ledger; empty disables it.
	DatabaseURL string `envconfig:"DATABASE_URL" validate:"omitempty,url"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"5"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"1"`

	// Ops server
	HTTPPort        string        `envconfig:"HTTP_PORT" default:"9090"`
	AdminToken      string        `envconfig:"ADMIN_TOKEN"` // empty disables POST /admin/replay
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// LedgerEnabled reports whether a Postgres dispatch ledger is configured.
func (c *Config) LedgerEnabled() bool {
	return c.DatabaseURL != ""
}
