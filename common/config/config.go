// Package config holds the infrastructure configuration blocks shared by
// every CarePulse service. Each service composes these into its own config
// struct under internal/config and loads it with viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns a connection string suitable for pgxpool and migrate.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds Redis configuration for the idempotency cache
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	Enabled   bool          `mapstructure:"enabled"`
	DedupeTTL time.Duration `mapstructure:"dedupe_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RetryConfig holds backoff retry settings for outbound dependencies.
type RetryConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// BreakerConfig holds circuit breaker settings for outbound dependencies.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	Timeout          time.Duration `mapstructure:"timeout"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// SetSharedDefaults registers defaults for the shared infrastructure blocks
// on the given viper instance. Service Load functions call this before
// adding their own defaults.
func SetSharedDefaults(v *viper.Viper) {
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "carepulse")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.dedupe_ttl", "24h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.backoff_multiplier", 2.0)

	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.timeout", "60s")
	v.SetDefault("breaker.reset_timeout", "300s")
}

// Read loads the config file (when configPath is non-empty) and applies
// environment overrides with the given prefix, then unmarshals into out.
func Read(v *viper.Viper, configPath, envPrefix string, out any) error {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
