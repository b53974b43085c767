// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Port        int    `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	LogLevel    string `mapstructure:"log_level"`

	// AutoInitialize flips the lifecycle guard at startup instead of
	// waiting for POST /v1/initialize.
	AutoInitialize bool `mapstructure:"auto_initialize"`

	// RateLimit is requests per second across all mutating routes.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`

	// Argon2id hash and salt of the treasurer secret, base64 encoded.
	// Empty hash leaves destructive routes unprotected.
	AdminSecretHash string `mapstructure:"admin_secret_hash"`
	AdminSecretSalt string `mapstructure:"admin_secret_salt"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	v.SetConfigFile(fmt.Sprintf("config/config.%s.yaml", env))
	v.AddConfigPath(".")

	v.SetDefault("port", 8080)
	v.SetDefault("database_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("auto_initialize", false)
	v.SetDefault("rate_limit", 50.0)
	v.SetDefault("rate_burst", 100)
	v.SetDefault("service_name", "clubledger")

	v.SetEnvPrefix("CLUBLEDGER")
	v.AutomaticEnv()

	// Config file is optional; env and defaults cover everything.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
