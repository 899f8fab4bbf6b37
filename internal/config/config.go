// Package config loads gittab configuration from gittab.yaml and builds
// the configured cache backend.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"gittab/internal/cache"
	"gittab/internal/logging"
)

// Config is the complete gittab configuration.
type Config struct {
	// DefaultBranch overrides per-repository branch resolution.
	DefaultBranch string        `json:"defaultBranch" mapstructure:"defaultBranch"`
	Cache         CacheConfig   `json:"cache" mapstructure:"cache"`
	Logging       LoggingConfig `json:"logging" mapstructure:"logging"`
}

// CacheConfig selects and parameterizes the cache backend.
type CacheConfig struct {
	// Backend is one of "none", "ephemeral", "disk", "sqlite", "redis".
	Backend string       `json:"backend" mapstructure:"backend"`
	MaxKeys int          `json:"maxKeys" mapstructure:"maxKeys"`
	Disk    DiskConfig   `json:"disk" mapstructure:"disk"`
	SQLite  SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
	Redis   RedisConfig  `json:"redis" mapstructure:"redis"`
}

// DiskConfig parameterizes the compressed-snapshot backend.
type DiskConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// SQLiteConfig parameterizes the sqlite backend.
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// RedisConfig parameterizes the redis backend. Extras are forwarded to
// the client without interpretation.
type RedisConfig struct {
	Host       string                 `json:"host" mapstructure:"host"`
	Port       int                    `json:"port" mapstructure:"port"`
	DB         int                    `json:"db" mapstructure:"db"`
	Password   string                 `json:"password" mapstructure:"password"`
	TTLSeconds int                    `json:"ttlSeconds" mapstructure:"ttlSeconds"`
	Extras     map[string]interface{} `json:"extras" mapstructure:"extras"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend: "ephemeral",
			MaxKeys: cache.DefaultMaxKeys,
			Disk:    DiskConfig{Path: ".gittab/cache.gz"},
			SQLite:  SQLiteConfig{Path: ".gittab/cache.db"},
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
				DB:   12,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "human",
		},
	}
}

// Load reads gittab.yaml from dir, falling back to defaults when the file
// does not exist. An explicit path overrides discovery.
func Load(dir, path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("cache.backend", "ephemeral")
	v.SetDefault("cache.maxKeys", cache.DefaultMaxKeys)
	v.SetDefault("cache.disk.path", ".gittab/cache.gz")
	v.SetDefault("cache.sqlite.path", ".gittab/cache.db")
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 12)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "human")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gittab")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && path == "" {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the backends would reject.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "none", "ephemeral", "disk", "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.MaxKeys < 0 {
		return fmt.Errorf("config: cache.maxKeys must not be negative")
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Logging.Format)
	}
	return nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger() *logging.Logger {
	level := logging.ParseLevel(c.Logging.Level)
	format := logging.HumanFormat
	if c.Logging.Format == "json" {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{Level: level, Format: format})
}

// BuildBackend constructs the configured cache backend. The "none"
// backend returns nil, which disables caching.
func BuildBackend(c *Config, logger *logging.Logger) (cache.Backend, error) {
	maxKeys := c.Cache.MaxKeys
	if maxKeys <= 0 {
		maxKeys = cache.DefaultMaxKeys
	}

	switch c.Cache.Backend {
	case "", "none":
		return nil, nil
	case "ephemeral":
		return cache.NewEphemeralBackend(maxKeys), nil
	case "disk":
		return cache.NewDiskBackend(c.Cache.Disk.Path, maxKeys, logger)
	case "sqlite":
		return cache.NewSQLiteBackend(c.Cache.SQLite.Path, maxKeys, logger)
	case "redis":
		return cache.NewRedisBackend(cache.RedisConfig{
			Host:     c.Cache.Redis.Host,
			Port:     c.Cache.Redis.Port,
			DB:       c.Cache.Redis.DB,
			Password: c.Cache.Redis.Password,
			MaxKeys:  maxKeys,
			TTL:      time.Duration(c.Cache.Redis.TTLSeconds) * time.Second,
			Extras:   c.Cache.Redis.Extras,
		}, logger)
	default:
		return nil, fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
}
