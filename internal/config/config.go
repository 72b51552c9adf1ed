// SPDX-License-Identifier: MIT

// Package config loads tbfd configuration with precedence ENV > file > defaults.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML files can use "30s" style values.
type Duration time.Duration

// Std returns the standard library form.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML accepts either a duration string ("1m30s") or a bare
// integer of nanoseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(n)
	return nil
}

// MarshalYAML renders the string form.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// Store backends.
const (
	StoreBadger = "badger"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config is the resolved runtime configuration of tbfd.
type Config struct {
	Listen   string `yaml:"listen"`
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Store     StoreConfig     `yaml:"store"`
	API       APIConfig       `yaml:"api"`
	Cache     CacheConfig     `yaml:"cache"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// StoreConfig selects and parameterizes the document store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// APIConfig holds HTTP surface limits.
type APIConfig struct {
	MaxBodyBytes  int64    `yaml:"maxBodyBytes"`
	RateLimit     int      `yaml:"rateLimit"`
	RateWindow    Duration `yaml:"rateWindow"`
	ReadTimeout   Duration `yaml:"readTimeout"`
	WriteTimeout  Duration `yaml:"writeTimeout"`
	ShutdownGrace Duration `yaml:"shutdownGrace"`
}

// CacheConfig parameterizes the decoded-document cache.
type CacheConfig struct {
	Backend   string   `yaml:"backend"`
	TTL       Duration `yaml:"ttl"`
	RedisAddr string   `yaml:"redisAddr"`
}

// JobsConfig bounds the batch conversion pipeline.
type JobsConfig struct {
	Concurrency int     `yaml:"concurrency"`
	FilesPerSec float64 `yaml:"filesPerSec"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"` // "grpc" or "http"
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:   ":8080",
		DataDir:  "./data",
		LogLevel: "info",
		Store: StoreConfig{
			Backend: StoreBadger,
		},
		API: APIConfig{
			MaxBodyBytes:  32 << 20,
			RateLimit:     120,
			RateWindow:    Duration(time.Minute),
			ReadTimeout:   Duration(30 * time.Second),
			WriteTimeout:  Duration(60 * time.Second),
			ShutdownGrace: Duration(10 * time.Second),
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     Duration(5 * time.Minute),
		},
		Jobs: JobsConfig{
			Concurrency: 4,
			FilesPerSec: 0, // unlimited
		},
		Telemetry: TelemetryConfig{
			Exporter:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}

// Validate rejects configurations the daemon cannot run with. It also
// fills derived defaults (store path under the data dir).
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("config: invalid listen address %q: %w", c.Listen, err)
	}
	if c.DataDir == "" {
		return fmt.Errorf("config: dataDir must not be empty")
	}

	switch c.Store.Backend {
	case StoreBadger, StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" && c.Store.Backend != StoreMemory {
		name := "documents"
		if c.Store.Backend == StoreSQLite {
			name = "documents.db"
		}
		c.Store.Path = filepath.Join(c.DataDir, name)
	}

	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: maxBodyBytes must be positive, got %d", c.API.MaxBodyBytes)
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("config: rateLimit must be positive, got %d", c.API.RateLimit)
	}
	if c.API.RateWindow <= 0 {
		return fmt.Errorf("config: rateWindow must be positive, got %s", c.API.RateWindow)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("config: redis cache backend requires redisAddr")
		}
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend != CacheNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache ttl must be positive, got %s", c.Cache.TTL)
	}

	if c.Jobs.Concurrency <= 0 {
		return fmt.Errorf("config: jobs concurrency must be positive, got %d", c.Jobs.Concurrency)
	}
	if c.Jobs.FilesPerSec < 0 {
		return fmt.Errorf("config: jobs filesPerSec must not be negative, got %f", c.Jobs.FilesPerSec)
	}

	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("config: unknown telemetry exporter %q", c.Telemetry.Exporter)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("config: telemetry sample rate %f out of range [0,1]", c.Telemetry.SampleRate)
		}
	}
	return nil
}
