package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all host configuration. Values come from an optional YAML
// file first, then environment variables; env always wins.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Timers     TimerConfig      `yaml:"timers"`
	Proxy      ProxyConfig      `yaml:"proxy"`
	Logging    LogConfig        `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// PathsConfig holds filesystem layout configuration.
type PathsConfig struct {
	DataDir       string `envconfig:"DATA_DIR" default:"./data" yaml:"data_dir"`
	ExtensionsDir string `envconfig:"EXTENSIONS_DIR" default:"" yaml:"extensions_dir"`
}

// ExtensionsConfig holds extension runtime configuration.
type ExtensionsConfig struct {
	// BackgroundID is the one extension allowed to minimize instead of
	// close while its background activity (ambient audio) is playing.
	BackgroundID  string `envconfig:"BACKGROUND_EXTENSION_ID" default:"ambient-music" yaml:"background_id"`
	MaxArchiveMB  int64  `envconfig:"MAX_ARCHIVE_MB" default:"100" yaml:"max_archive_mb"`
	InstallingURL bool   `envconfig:"ALLOW_URL_INSTALL" default:"true" yaml:"allow_url_install"`
}

// TimerConfig holds timer service configuration.
type TimerConfig struct {
	TickIntervalMs int `envconfig:"TIMER_TICK_MS" default:"100" yaml:"tick_interval_ms"`
}

// TickInterval returns the tick interval as a duration.
func (t TimerConfig) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}

// ProxyConfig holds the extension content proxy configuration.
type ProxyConfig struct {
	Enabled   bool  `envconfig:"PROXY_ENABLED" default:"true" yaml:"enabled"`
	MaxBodyMB int64 `envconfig:"PROXY_MAX_BODY_MB" default:"10" yaml:"max_body_mb"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from a YAML file layered over the
// defaults. Used when the operator passes an explicit config file;
// otherwise configuration comes from the environment via Load.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
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
			Port: "8400",
			Host: "0.0.0.0",
		},
		Paths: PathsConfig{
			DataDir: "./data",
		},
		Extensions: ExtensionsConfig{
			BackgroundID:  "ambient-music",
			MaxArchiveMB:  100,
			InstallingURL: true,
		},
		Timers: TimerConfig{
			TickIntervalMs: 100,
		},
		Proxy: ProxyConfig{
			Enabled:   true,
			MaxBodyMB: 10,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
