package config

import (
	"github.com/spf13/viper"

	"github.com/carepulse-systems/carepulse-stack/common/config"
)

// Config holds all configuration for the alert service
type Config struct {
	Server   config.ServerConfig   `mapstructure:"server"`
	Database config.DatabaseConfig `mapstructure:"database"`
	NATS     config.NATSConfig     `mapstructure:"nats"`
	Redis    config.RedisConfig    `mapstructure:"redis"`
	Logging  config.LoggingConfig  `mapstructure:"logging"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	config.SetSharedDefaults(v)
	v.SetDefault("server.port", 8082)
	v.SetDefault("database.postgres.database", "carepulse_alert")

	var cfg Config
	if err := config.Read(v, configPath, "ALERT", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
