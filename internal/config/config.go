// Package config handles YAML configuration loading with environment variable expansion.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.yaml.in/yaml/v3"
)

// Storage backend names accepted by storage.type.
const (
	StorageFilesystem = "filesystem"
	StorageMemory     = "memory"
	StorageRedis      = "redis"
	StorageSQLite     = "sqlite"
)

// Config is the top-level holocron configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RateLimitRPM    int64         `yaml:"rate_limit_rpm"` // per client, 0 = unlimited
	AdminToken      string        `yaml:"admin_token"`    // required on /admin routes when set
}

// RemoteConfig describes the upstream catalog API.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"` // optional bearer token
	DNSTTL  time.Duration `yaml:"dns_ttl"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the per-kind circuit breakers.
type BreakerConfig struct {
	ErrorThreshold float64       `yaml:"error_threshold"`
	MinSamples     int           `yaml:"min_samples"`
	WindowSeconds  int           `yaml:"window_seconds"`
	OpenTimeout    time.Duration `yaml:"open_timeout"`
}

// CacheConfig holds the read-through cache policy.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"` // 0 disables the sweeper
}

// StorageConfig selects and configures the cache storage backend.
type StorageConfig struct {
	Type      string       `yaml:"type"`
	CacheName string       `yaml:"cache_name"`
	Dir       string       `yaml:"dir"` // filesystem base dir, defaults to the user cache dir
	Redis     RedisConfig  `yaml:"redis"`
	SQLite    SQLiteConfig `yaml:"sqlite"`
}

// RedisConfig holds redis backend settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"` // defaults to "<cache_name>:"
}

// SQLiteConfig holds sqlite backend settings.
type SQLiteConfig struct {
	DSN string `yaml:"dsn"` // file path or ":memory:"
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Endpoint   string  `yaml:"endpoint"`    // OTLP gRPC endpoint
	SampleRate float64 `yaml:"sample_rate"` // 0.0 to 1.0
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${VAR} patterns with environment variable values.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := string(match[2 : len(match)-1])
		if val, ok := os.LookupEnv(varName); ok {
			return []byte(val)
		}
		return match
	})
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Remote: RemoteConfig{
			BaseURL: "https://www.swapi.tech/api",
			Timeout: 10 * time.Second,
			DNSTTL:  5 * time.Minute,
			Breaker: BreakerConfig{
				ErrorThreshold: 0.5,
				MinSamples:     5,
				WindowSeconds:  30,
				OpenTimeout:    15 * time.Second,
			},
		},
		Cache: CacheConfig{
			Enabled:       true,
			TTL:           time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Storage: StorageConfig{
			Type:      StorageFilesystem,
			CacheName: "holocron",
			SQLite:    SQLiteConfig{DSN: "holocron.db"},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: true},
		},
	}
}

// Load reads and parses a YAML config file, expanding environment variables.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = expandEnv(data)

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %s", c.Cache.TTL))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("cache.sweep_interval must not be negative, got %s", c.Cache.SweepInterval))
	}
	if c.Server.RateLimitRPM < 0 {
		errs = append(errs, errors.New("server.rate_limit_rpm must not be negative"))
	}
	if t := c.Telemetry.Tracing; t.Enabled && (t.SampleRate < 0 || t.SampleRate > 1) {
		errs = append(errs, fmt.Errorf("telemetry.tracing.sample_rate must be in [0, 1], got %g", t.SampleRate))
	}

	s := c.Storage
	if s.CacheName == "" {
		errs = append(errs, errors.New("storage.cache_name is required"))
	}
	switch s.Type {
	case StorageFilesystem, StorageMemory:
	case StorageRedis:
		if s.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required for the redis backend"))
		}
	case StorageSQLite:
		if s.SQLite.DSN == "" {
			errs = append(errs, errors.New("storage.sqlite.dsn is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type %q is not one of filesystem, memory, redis, sqlite", s.Type))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RedisPrefix returns the key prefix for the redis backend.
func (s StorageConfig) RedisPrefix() string {
	if s.Redis.Prefix != "" {
		return s.Redis.Prefix
	}
	return s.CacheName + ":"
}
