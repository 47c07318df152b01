// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vecscope-dev/vecscope/internal/embedding"
	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Config is the top-level Vecscope configuration.
type Config struct {
	Server    ServerConfig                `mapstructure:"server"`
	Store     StoreConfig                 `mapstructure:"store"`
	Embedding EmbeddingConfig             `mapstructure:"embedding"`
	Search    SearchConfig                `mapstructure:"search"`
	Jobs      JobsConfig                  `mapstructure:"jobs"`
	Cache     CacheConfig                 `mapstructure:"cache"`
	Providers map[string]embedding.Config `mapstructure:"providers"`
}

// ServerConfig controls how Vecscope listens for connections.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// StoreConfig selects and parameterizes the vector-store backend.
type StoreConfig struct {
	Backend string       `mapstructure:"backend"`
	Redis   RedisConfig  `mapstructure:"redis"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

// RedisConfig holds the connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SQLiteConfig holds the settings for the local sqlite backend.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// EmbeddingConfig selects which configured provider embeds by default.
// "none" disables embedding; text searches then fail as unavailable.
type EmbeddingConfig struct {
	Default string `mapstructure:"default"`
}

// SearchConfig tunes the session debounce windows.
type SearchConfig struct {
	QueryDebounceMS  int `mapstructure:"query_debounce_ms"`
	FilterDebounceMS int `mapstructure:"filter_debounce_ms"`
}

func (c SearchConfig) QueryDebounce() time.Duration {
	return time.Duration(c.QueryDebounceMS) * time.Millisecond
}

func (c SearchConfig) FilterDebounce() time.Duration {
	return time.Duration(c.FilterDebounceMS) * time.Millisecond
}

// JobsConfig tunes the import-job poll cadence.
type JobsConfig struct {
	PollIntervalMS       int `mapstructure:"poll_interval_ms"`
	ActivePollIntervalMS int `mapstructure:"active_poll_interval_ms"`
}

func (c JobsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c JobsConfig) ActivePollInterval() time.Duration {
	return time.Duration(c.ActivePollIntervalMS) * time.Millisecond
}

// CacheConfig tunes the embedding and attribute caches.
type CacheConfig struct {
	EmbeddingTTLSeconds int `mapstructure:"embedding_ttl_seconds"`
	EmbeddingCapacity   int `mapstructure:"embedding_capacity"`
	AttributeDebounceMS int `mapstructure:"attribute_debounce_ms"`
}

func (c CacheConfig) EmbeddingTTL() time.Duration {
	return time.Duration(c.EmbeddingTTLSeconds) * time.Second
}

func (c CacheConfig) AttributeDebounce() time.Duration {
	return time.Duration(c.AttributeDebounceMS) * time.Millisecond
}

// DefaultEmbedding resolves the default provider selection to a concrete
// embedding config. An unset or "none" selection yields a zero config, which
// the embedding layer reports as unavailable.
func (c *Config) DefaultEmbedding() embedding.Config {
	name := c.Embedding.Default
	if name == "" || name == "none" {
		return embedding.Config{}
	}
	cfg := c.Providers[name]
	cfg.Provider = name
	return cfg
}

// SetDefaults installs every default onto v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", "127.0.0.1:7700")
	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.redis.addr", "127.0.0.1:6379")
	v.SetDefault("store.sqlite.path", "vecscope.db")
	v.SetDefault("embedding.default", "none")
	v.SetDefault("search.query_debounce_ms", 300)
	v.SetDefault("search.filter_debounce_ms", 800)
	v.SetDefault("jobs.poll_interval_ms", 5000)
	v.SetDefault("jobs.active_poll_interval_ms", 1000)
	v.SetDefault("cache.embedding_ttl_seconds", 300)
	v.SetDefault("cache.embedding_capacity", 100)
	v.SetDefault("cache.attribute_debounce_ms", 150)
}

// SetupEnv binds VECSCOPE_-prefixed environment variables onto v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("VECSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, vserr.Errorf(vserr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}

	// The map key is the provider's identity; the nested field is derived.
	for name, pc := range cfg.Providers {
		pc.Provider = name
		cfg.Providers[name] = pc
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, vserr.Errorf(vserr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix VECSCOPE_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, vserr.Errorf(vserr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateServer()...)
	errs = append(errs, c.validateStore()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateTimings()...)

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.Listen == "" {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty"))
		return errs
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w",
			c.Server.Listen, err,
		))
		return errs
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr))
	} else if port < 1 || port > 65535 {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port))
	}

	return errs
}

func (c *Config) validateStore() []error {
	var errs []error

	switch c.Store.Backend {
	case "redis":
		if c.Store.Redis.Addr == "" {
			errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
				"config: store.redis.addr must not be empty for the redis backend"))
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
				"config: store.sqlite.path must not be empty for the sqlite backend"))
		}
	default:
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: store.backend must be one of [redis, sqlite], got %q", c.Store.Backend))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error

	name := c.Embedding.Default
	if name == "" || name == "none" {
		return nil
	}
	if _, ok := c.Providers[name]; !ok {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: embedding.default %q references a provider that is not configured", name))
	}

	return errs
}

func (c *Config) validateTimings() []error {
	var errs []error

	positive := []struct {
		name  string
		value int
	}{
		{"search.query_debounce_ms", c.Search.QueryDebounceMS},
		{"search.filter_debounce_ms", c.Search.FilterDebounceMS},
		{"jobs.poll_interval_ms", c.Jobs.PollIntervalMS},
		{"jobs.active_poll_interval_ms", c.Jobs.ActivePollIntervalMS},
		{"cache.embedding_ttl_seconds", c.Cache.EmbeddingTTLSeconds},
		{"cache.embedding_capacity", c.Cache.EmbeddingCapacity},
		{"cache.attribute_debounce_ms", c.Cache.AttributeDebounceMS},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
				"config: %s must be greater than 0, got %d", p.name, p.value))
		}
	}

	if c.Jobs.ActivePollIntervalMS > c.Jobs.PollIntervalMS {
		errs = append(errs, vserr.Errorf(vserr.CodeConfigValidateInvalidValue,
			"config: jobs.active_poll_interval_ms must not exceed jobs.poll_interval_ms"))
	}

	return errs
}
