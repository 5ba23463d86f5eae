// Package config loads gateway configuration from an optional YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/Sternrassler/skyfi-gateway/pkg/client"
	"github.com/Sternrassler/skyfi-gateway/pkg/logging"
	"github.com/Sternrassler/skyfi-gateway/pkg/pagination"
	"github.com/Sternrassler/skyfi-gateway/pkg/ratelimit"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the complete gateway configuration.
type Config struct {
	SkyFi   SkyFiConfig   `yaml:"skyfi" envconfig:"SKYFI"`
	Redis   RedisConfig   `yaml:"redis" envconfig:"REDIS"`
	Server  ServerConfig  `yaml:"server" envconfig:"SERVER"`
	History HistoryConfig `yaml:"history" envconfig:"HISTORY"`
	Logging LoggingConfig `yaml:"logging" envconfig:"LOG"`
}

// SkyFiConfig configures the upstream client.
type SkyFiConfig struct {
	APIKey             string        `yaml:"api_key" envconfig:"API_KEY"`
	BaseURL            string        `yaml:"base_url" envconfig:"BASE_URL"`
	Timeout            time.Duration `yaml:"-" envconfig:"TIMEOUT"`
	Retries            int           `yaml:"retries" envconfig:"RETRIES"`
	BackoffBase        time.Duration `yaml:"-" envconfig:"BACKOFF_BASE"`
	RateLimitCapacity  int           `yaml:"rate_limit_capacity" envconfig:"RATE_LIMIT_CAPACITY"`
	RateLimitPerSecond float64       `yaml:"rate_limit_per_second" envconfig:"RATE_LIMIT_PER_SECOND"`

	// Raw duration strings from YAML
	TimeoutRaw     string `yaml:"timeout" ignored:"true"`
	BackoffBaseRaw string `yaml:"backoff_base" ignored:"true"`
}

// RedisConfig enables the shared cache and session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"ADDR"`
	Password string `yaml:"password" envconfig:"PASSWORD"`
	DB       int    `yaml:"db" envconfig:"DB"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"-" envconfig:"SHUTDOWN_TIMEOUT"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" ignored:"true"`
}

// HistoryConfig configures order-history sessions.
type HistoryConfig struct {
	DefaultLimit int           `yaml:"default_limit" envconfig:"DEFAULT_LIMIT"`
	MaxLimit     int           `yaml:"max_limit" envconfig:"MAX_LIMIT"`
	SessionTTL   time.Duration `yaml:"-" envconfig:"SESSION_TTL"`

	SessionTTLRaw string `yaml:"session_ttl" ignored:"true"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Pretty bool   `yaml:"pretty" envconfig:"PRETTY"`
}

// Load builds the configuration. Values come from the YAML file at path (if
// path is non-empty), then environment variables, then defaults.
// Environment variables in the format ${VAR_NAME} are expanded in the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}

		if err := parseDurations(&cfg); err != nil {
			return nil, fmt.Errorf("parsing durations: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"skyfi.timeout", cfg.SkyFi.TimeoutRaw, &cfg.SkyFi.Timeout},
		{"skyfi.backoff_base", cfg.SkyFi.BackoffBaseRaw, &cfg.SkyFi.BackoffBase},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"history.session_ttl", cfg.History.SessionTTLRaw, &cfg.History.SessionTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := client.DefaultConfig("")
	if c.SkyFi.BaseURL == "" {
		c.SkyFi.BaseURL = def.BaseURL
	}
	if c.SkyFi.Timeout == 0 {
		c.SkyFi.Timeout = def.Timeout
	}
	if c.SkyFi.Retries == 0 {
		c.SkyFi.Retries = def.Retries
	}
	if c.SkyFi.BackoffBase == 0 {
		c.SkyFi.BackoffBase = def.BackoffBase
	}
	if c.SkyFi.RateLimitCapacity == 0 {
		c.SkyFi.RateLimitCapacity = ratelimit.DefaultCapacity
	}
	if c.SkyFi.RateLimitPerSecond == 0 {
		c.SkyFi.RateLimitPerSecond = ratelimit.DefaultRefillPerSecond
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	hist := pagination.DefaultConfig()
	if c.History.DefaultLimit == 0 {
		c.History.DefaultLimit = hist.DefaultLimit
	}
	if c.History.MaxLimit == 0 {
		c.History.MaxLimit = hist.MaxLimit
	}
	if c.History.SessionTTL == 0 {
		c.History.SessionTTL = pagination.DefaultSessionTTL
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.SkyFi.APIKey == "" {
		return errors.New("skyfi.api_key is required (or set SKYFI_API_KEY)")
	}
	if c.SkyFi.Retries < 1 {
		return fmt.Errorf("skyfi.retries must be >= 1 (got %d)", c.SkyFi.Retries)
	}
	if c.SkyFi.Timeout < 0 || c.SkyFi.BackoffBase < 0 {
		return errors.New("skyfi.timeout and skyfi.backoff_base must not be negative")
	}
	if c.SkyFi.RateLimitCapacity < 1 {
		return fmt.Errorf("skyfi.rate_limit_capacity must be >= 1 (got %d)", c.SkyFi.RateLimitCapacity)
	}
	if c.SkyFi.RateLimitPerSecond <= 0 {
		return fmt.Errorf("skyfi.rate_limit_per_second must be positive (got %g)", c.SkyFi.RateLimitPerSecond)
	}
	if c.History.DefaultLimit < 1 || c.History.MaxLimit < c.History.DefaultLimit {
		return fmt.Errorf("history limits must satisfy 1 <= default_limit <= max_limit (got %d, %d)",
			c.History.DefaultLimit, c.History.MaxLimit)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

// ClientConfig returns the upstream client configuration without a cache backend.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		APIKey:      c.SkyFi.APIKey,
		BaseURL:     c.SkyFi.BaseURL,
		Timeout:     c.SkyFi.Timeout,
		Retries:     c.SkyFi.Retries,
		BackoffBase: c.SkyFi.BackoffBase,
		RateLimit: client.RateLimitConfig{
			Capacity:        c.SkyFi.RateLimitCapacity,
			RefillPerSecond: c.SkyFi.RateLimitPerSecond,
		},
	}
}

// HistoryManagerConfig returns the order-history manager configuration.
func (c *Config) HistoryManagerConfig() pagination.Config {
	cfg := pagination.DefaultConfig()
	cfg.DefaultLimit = c.History.DefaultLimit
	cfg.MaxLimit = c.History.MaxLimit
	return cfg
}
