// Package config holds the registry configuration read from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Package store backends.
const (
	PackageStoreFS  = "fs"
	PackageStoreOCI = "oci"
)

// Config is the registry configuration.
type Config struct {
	DBPath string `env:"THINGPEDIA_DB_PATH" envDefault:"thingpedia.db"`

	PackageStore string `env:"THINGPEDIA_PACKAGE_STORE" envDefault:"fs"`
	PackageDir   string `env:"THINGPEDIA_PACKAGE_DIR"`

	OCIRepository string `env:"THINGPEDIA_OCI_REPOSITORY"`
	OCIPlainHTTP  bool   `env:"THINGPEDIA_OCI_PLAIN_HTTP"`
	OCIUsername   string `env:"THINGPEDIA_OCI_USERNAME"`
	OCIPassword   string `env:"THINGPEDIA_OCI_PASSWORD"`

	ReservedKinds []string `env:"THINGPEDIA_RESERVED_KINDS" envSeparator:"," envDefault:"org.thingpedia.builtin.*"`

	PackagingWorkers int   `env:"THINGPEDIA_PACKAGING_WORKERS" envDefault:"2"`
	MaxPackageBytes  int64 `env:"THINGPEDIA_MAX_PACKAGE_BYTES" envDefault:"33554432"`

	LogLevel  string `env:"THINGPEDIA_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"THINGPEDIA_LOG_FORMAT" envDefault:"text"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses a Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	switch c.PackageStore {
	case PackageStoreFS:
	case PackageStoreOCI:
		if c.OCIRepository == "" {
			return fmt.Errorf("THINGPEDIA_OCI_REPOSITORY is required when the package store is %q", PackageStoreOCI)
		}
	default:
		return fmt.Errorf("unknown package store %q (want %q or %q)", c.PackageStore, PackageStoreFS, PackageStoreOCI)
	}
	if c.PackagingWorkers < 1 {
		return fmt.Errorf("packaging workers must be at least 1, got %d", c.PackagingWorkers)
	}
	if c.MaxPackageBytes <= 0 {
		return fmt.Errorf("max package bytes must be positive, got %d", c.MaxPackageBytes)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
