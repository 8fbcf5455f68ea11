package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/modchat-server/internal/moderation"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	MaxMessageBytes    int64    `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessageRunes    int      `mapstructure:"max_message_runes" yaml:"max_message_runes"`
	HistoryLimit       int      `mapstructure:"history_limit" yaml:"history_limit"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	DefaultChannels    []string `mapstructure:"default_channels" yaml:"default_channels"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTRequired bool   `mapstructure:"jwt_required" yaml:"jwt_required"`

	Moderation ModerationConfig `mapstructure:"moderation" yaml:"moderation"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
}

// ModerationConfig points at the external moderation service.
type ModerationConfig struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	FailurePolicy string        `mapstructure:"failure_policy" yaml:"failure_policy"`
}

// StoreConfig selects the durable message store. DSN is a file path for
// sqlite and a URL for redis and postgres.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		MaxMessageBytes:    64 << 10,
		MaxMessageRunes:    2000,
		HistoryLimit:       50,
		RateLimitPerMinute: 60,
		DefaultChannels:    []string{"General", "Tech", "Random"},
		Moderation: ModerationConfig{
			URL:           "http://localhost:8000",
			Timeout:       3 * time.Second,
			FailurePolicy: string(moderation.FailOpen),
		},
		Store: StoreConfig{
			Driver: DriverMemory,
		},
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.Moderation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("moderation.timeout must be positive, got %s", c.Moderation.Timeout))
	}
	if _, err := moderation.ParsePolicy(c.Moderation.FailurePolicy); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverRedis, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	if len(c.DefaultChannels) == 0 {
		errs = append(errs, errors.New("default_channels must not be empty"))
	}
	if c.JWTRequired && c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_required needs jwt_secret"))
	}
	if c.MaxMessageRunes < 0 || c.HistoryLimit < 0 || c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("limits must not be negative"))
	}
	return errors.Join(errs...)
}
