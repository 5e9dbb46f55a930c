// Package config provides configuration loading for projindex.
//
// Configuration is layered from hard-coded defaults, an optional YAML file,
// an optional .env file in the working directory, and process environment
// variables (highest precedence).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Auth schemes accepted by the Linear API.
const (
	AuthSchemeAPIKey = "api_key"
	AuthSchemeOAuth  = "oauth"
)

// MaxPageSize is the largest page the Linear projects query accepts.
const MaxPageSize = 100

// Config holds the complete projindex configuration.
type Config struct {
	Linear      LinearConfig   `koanf:"linear"`
	Initiatives []string       `koanf:"initiatives"`
	Database    DatabaseConfig `koanf:"database"`
	Log         LogConfig      `koanf:"log"`
}

// LinearConfig holds Linear API client configuration.
type LinearConfig struct {
	APIKey            Secret   `koanf:"api_key"`
	URL               string   `koanf:"url"`
	AuthScheme        string   `koanf:"auth_scheme"`
	PageSize          int      `koanf:"page_size"`
	MaxPages          int      `koanf:"max_pages"` // 0 = follow every page
	Timeout           Duration `koanf:"timeout"`
	RequestsPerSecond float64  `koanf:"requests_per_second"`
}

// DatabaseConfig locates the append-only project database file.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// LogConfig holds the user-facing logging knobs.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Linear.URL == "" {
		cfg.Linear.URL = "https://api.linear.app/graphql"
	}
	if cfg.Linear.AuthScheme == "" {
		cfg.Linear.AuthScheme = AuthSchemeAPIKey
	}
	if cfg.Linear.PageSize == 0 {
		cfg.Linear.PageSize = MaxPageSize
	}
	if cfg.Linear.Timeout == 0 {
		cfg.Linear.Timeout = Duration(30 * time.Second)
	}
	if cfg.Linear.RequestsPerSecond == 0 {
		cfg.Linear.RequestsPerSecond = 5
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "project_database.json"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// normalizeInitiatives splits comma-separated entries (the env and .env
// form), then trims and upper-cases each code, dropping blanks.
func normalizeInitiatives(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, entry := range codes {
		for _, code := range strings.Split(entry, ",") {
			code = strings.ToUpper(strings.TrimSpace(code))
			if code == "" {
				continue
			}
			out = append(out, code)
		}
	}
	return out
}

// Validate validates the configuration.
//
// The API key is not checked here: a missing or invalid key surfaces as an
// authentication failure from the first remote call.
func (c *Config) Validate() error {
	if len(c.Initiatives) == 0 {
		return errors.New("at least one initiative is required")
	}
	seen := make(map[string]bool, len(c.Initiatives))
	for _, code := range c.Initiatives {
		if strings.ContainsAny(code, " \t\r\n") {
			return fmt.Errorf("initiative %q must not contain whitespace", code)
		}
		if strings.Contains(code, ",") {
			return fmt.Errorf("initiative %q must not contain commas", code)
		}
		if seen[code] {
			return fmt.Errorf("duplicate initiative %q", code)
		}
		seen[code] = true
	}

	switch c.Linear.AuthScheme {
	case AuthSchemeAPIKey, AuthSchemeOAuth:
	default:
		return fmt.Errorf("invalid linear auth scheme %q (must be %q or %q)",
			c.Linear.AuthScheme, AuthSchemeAPIKey, AuthSchemeOAuth)
	}
	if c.Linear.URL == "" {
		return errors.New("linear url is required")
	}
	if c.Linear.PageSize < 1 || c.Linear.PageSize > MaxPageSize {
		return fmt.Errorf("invalid linear page size: %d (must be 1-%d)", c.Linear.PageSize, MaxPageSize)
	}
	if c.Linear.MaxPages < 0 {
		return fmt.Errorf("invalid linear max pages: %d (must be >= 0)", c.Linear.MaxPages)
	}
	if c.Linear.Timeout.Duration() <= 0 {
		return errors.New("linear timeout must be positive")
	}
	if c.Linear.RequestsPerSecond <= 0 {
		return errors.New("linear requests per second must be positive")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}

	return nil
}
