// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath string
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file stage.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load resolves the configuration: defaults first, then the YAML file (if
// any), then environment overrides, then validation.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.applyFile(&cfg); err != nil {
			return Config{}, err
		}
	}
	l.applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) applyFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", l.configPath, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) applyEnv(cfg *Config) {
	cfg.Listen = ParseString("TBF_LISTEN", cfg.Listen)
	cfg.DataDir = ParseString("TBF_DATA", cfg.DataDir)
	cfg.LogLevel = ParseString("TBF_LOG_LEVEL", cfg.LogLevel)

	cfg.Store.Backend = ParseString("TBF_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = ParseString("TBF_STORE_PATH", cfg.Store.Path)

	cfg.API.MaxBodyBytes = ParseInt64("TBF_MAX_BODY_BYTES", cfg.API.MaxBodyBytes)
	cfg.API.RateLimit = ParseInt("TBF_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = Duration(ParseDuration("TBF_RATE_WINDOW", cfg.API.RateWindow.Std()))
	cfg.API.ReadTimeout = Duration(ParseDuration("TBF_READ_TIMEOUT", cfg.API.ReadTimeout.Std()))
	cfg.API.WriteTimeout = Duration(ParseDuration("TBF_WRITE_TIMEOUT", cfg.API.WriteTimeout.Std()))
	cfg.API.ShutdownGrace = Duration(ParseDuration("TBF_SHUTDOWN_GRACE", cfg.API.ShutdownGrace.Std()))

	cfg.Cache.Backend = ParseString("TBF_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = Duration(ParseDuration("TBF_CACHE_TTL", cfg.Cache.TTL.Std()))
	cfg.Cache.RedisAddr = ParseString("TBF_REDIS_ADDR", cfg.Cache.RedisAddr)

	cfg.Jobs.Concurrency = ParseInt("TBF_JOBS_CONCURRENCY", cfg.Jobs.Concurrency)
	cfg.Jobs.FilesPerSec = ParseFloat("TBF_JOBS_RATE", cfg.Jobs.FilesPerSec)

	cfg.Telemetry.Enabled = ParseBool("TBF_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("TBF_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("TBF_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SampleRate = ParseFloat("TBF_OTEL_SAMPLE_RATE", cfg.Telemetry.SampleRate)
}
