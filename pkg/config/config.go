// Package config loads the client configuration from an optional YAML file
// and TASKDECK_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig points the client at a backend.
type ServerConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GateConfig tunes the operation gate.
type GateConfig struct {
	IDCap    int                      `mapstructure:"id_cap"`
	Timeouts map[string]time.Duration `mapstructure:"timeouts"`
}

// RetryConfig tunes the default retry policy. Per-operation presets still
// apply where they are stricter (create and reorder never retry more than
// twice).
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// SearchConfig tunes search throttling and result caching.
type SearchConfig struct {
	Rate      float64       `mapstructure:"rate"`
	Burst     int           `mapstructure:"burst"`
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// AuthConfig controls where the session token is kept.
type AuthConfig struct {
	TokenPath string `mapstructure:"token_path"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Config holds the complete client configuration.
type Config struct {
	Server      ServerConfig `mapstructure:"server"`
	Gate        GateConfig   `mapstructure:"gate"`
	Retry       RetryConfig  `mapstructure:"retry"`
	Search      SearchConfig `mapstructure:"search"`
	Auth        AuthConfig   `mapstructure:"auth"`
	Log         LogConfig    `mapstructure:"log"`
	Environment string       `mapstructure:"environment"`
}

// Load reads configuration from the file named by TASKDECK_CONFIG (or
// taskdeck.yaml in the working directory when present) and from environment
// variables prefixed with TASKDECK_.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TASKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common shorthand variables used in CI and containers.
	_ = v.BindEnv("server.base_url", "TASKDECK_SERVER_URL")
	_ = v.BindEnv("log.level", "TASKDECK_LOG_LEVEL")

	configFile := os.Getenv("TASKDECK_CONFIG")
	if configFile == "" {
		if _, err := os.Stat("taskdeck.yaml"); err == nil {
			configFile = "taskdeck.yaml"
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url must be set")
	}
	if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		return fmt.Errorf("server.base_url must be an http(s) URL, got %q", c.Server.BaseURL)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	if c.Gate.IDCap <= 0 {
		return fmt.Errorf("gate.id_cap must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "dev")

	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("gate.id_cap", 5)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", 1*time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("search.rate", 4.0)
	v.SetDefault("search.burst", 2)
	v.SetDefault("search.cache_size", 128)
	v.SetDefault("search.cache_ttl", 30*time.Second)

	v.SetDefault("auth.token_path", "")

	v.SetDefault("log.level", "info")
}
