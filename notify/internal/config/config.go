package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/carepulse-systems/carepulse-stack/common/config"
)

// Config holds all configuration for the notify service
type Config struct {
	Server    config.ServerConfig   `mapstructure:"server"`
	Database  config.DatabaseConfig `mapstructure:"database"`
	NATS      config.NATSConfig     `mapstructure:"nats"`
	Logging   config.LoggingConfig  `mapstructure:"logging"`
	Retry     config.RetryConfig    `mapstructure:"retry"`
	Breaker   config.BreakerConfig  `mapstructure:"breaker"`
	Providers ProvidersConfig       `mapstructure:"providers"`
	Guardians GuardiansConfig       `mapstructure:"guardians"`
	Notify    NotifyConfig          `mapstructure:"notify"`
}

// ProvidersConfig holds the notification provider endpoints.
type ProvidersConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	EmailURL         string        `mapstructure:"email_url"`
	SMSURL           string        `mapstructure:"sms_url"`
	PushURL          string        `mapstructure:"push_url"`
	TelegramAPIBase  string        `mapstructure:"telegram_api_base"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
}

// GuardiansConfig holds the user service endpoint for guardian lookup.
type GuardiansConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// NotifyConfig holds fan-out settings.
type NotifyConfig struct {
	// FanOutLimit bounds concurrent provider calls.
	FanOutLimit int `mapstructure:"fan_out_limit"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	config.SetSharedDefaults(v)
	v.SetDefault("server.port", 8083)
	v.SetDefault("database.postgres.database", "carepulse_notify")
	v.SetDefault("providers.timeout", "10s")
	v.SetDefault("providers.email_url", "http://localhost:8091")
	v.SetDefault("providers.sms_url", "http://localhost:8092")
	v.SetDefault("providers.push_url", "http://localhost:8093")
	v.SetDefault("providers.telegram_api_base", "https://api.telegram.org")
	v.SetDefault("guardians.url", "http://localhost:8085")
	v.SetDefault("guardians.timeout", "10s")
	v.SetDefault("notify.fan_out_limit", 8)

	var cfg Config
	if err := config.Read(v, configPath, "NOTIFY", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
