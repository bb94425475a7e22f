package config

import (
	"github.com/spf13/viper"

	"github.com/carepulse-systems/carepulse-stack/common/config"
)

// DispatchConfig tunes the escalation gate.
type DispatchConfig struct {
	// PriorityThreshold is the numeric AI priority at or above which a
	// non-critical risk event still opens an emergency call.
	PriorityThreshold int `mapstructure:"priority_threshold"`
}

// Config holds all configuration for the dispatch service
type Config struct {
	Server   config.ServerConfig   `mapstructure:"server"`
	Database config.DatabaseConfig `mapstructure:"database"`
	NATS     config.NATSConfig     `mapstructure:"nats"`
	Logging  config.LoggingConfig  `mapstructure:"logging"`
	Dispatch DispatchConfig        `mapstructure:"dispatch"`
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	config.SetSharedDefaults(v)
	v.SetDefault("server.port", 8084)
	v.SetDefault("database.postgres.database", "carepulse_dispatch")
	v.SetDefault("dispatch.priority_threshold", 8)

	var cfg Config
	if err := config.Read(v, configPath, "DISPATCH", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
