package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/carepulse-systems/carepulse-stack/common/config"
)

// Config holds all configuration for the predict service
type Config struct {
	Server   config.ServerConfig   `mapstructure:"server"`
	Database config.DatabaseConfig `mapstructure:"database"`
	NATS     config.NATSConfig     `mapstructure:"nats"`
	Logging  config.LoggingConfig  `mapstructure:"logging"`
	Retry    config.RetryConfig    `mapstructure:"retry"`
	Predict  PredictConfig         `mapstructure:"predict"`
}

// PredictConfig holds risk scoring settings
type PredictConfig struct {
	// RiskThreshold is the riskScore at or above which an ai.risk.alert
	// event is published.
	RiskThreshold float64 `mapstructure:"risk_threshold"`

	// EscalationWindow is how far back the service looks when computing a
	// ward's recent warning history.
	EscalationWindow time.Duration `mapstructure:"escalation_window"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	config.SetSharedDefaults(v)
	v.SetDefault("server.port", 8081)
	v.SetDefault("database.postgres.database", "carepulse_predict")
	v.SetDefault("predict.risk_threshold", 0.7)
	v.SetDefault("predict.escalation_window", "24h")

	var cfg Config
	if err := config.Read(v, configPath, "PREDICT", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
