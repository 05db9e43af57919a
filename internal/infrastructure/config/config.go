package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Exec      ExecConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8090"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// CORSOrigins restricts cross-origin callers. Empty means allow all.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:""`
}

// ExecConfig holds script execution configuration.
type ExecConfig struct {
	// ShellPath overrides ambient shell detection when set.
	ShellPath string `envconfig:"SHELL_PATH" default:""`

	// StagingDir is where scripts are written before dispatch. Empty
	// means a runnerd directory under the OS temp dir.
	StagingDir string `envconfig:"STAGING_DIR" default:""`

	// MaxTimeout caps the per-request timeout. Zero means uncapped.
	MaxTimeout time.Duration `envconfig:"MAX_TIMEOUT" default:"10m"`

	// CommandRetention bounds how long completed commands stay queryable.
	CommandRetention time.Duration `envconfig:"COMMAND_RETENTION" default:"1h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8090",
			Host: "0.0.0.0",
		},
		Exec: ExecConfig{
			MaxTimeout:       10 * time.Minute,
			CommandRetention: time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
