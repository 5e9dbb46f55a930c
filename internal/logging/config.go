package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/projindex/internal/config"
)

// Output destinations.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

const maxPatternLength = 200

// Config holds logger construction settings.
type Config struct {
	Level           zapcore.Level
	Format          string // "json" or "console"
	Output          string
	AddCaller       bool
	StacktraceLevel zapcore.Level
	Sampling        SamplingConfig
	Fields          map[string]string
	Redaction       RedactionConfig
}

// SamplingConfig thins out repeated entries below Info, such as the
// per-page fetch lines. Info and above are never sampled.
type SamplingConfig struct {
	Enabled    bool
	Tick       time.Duration
	Initial    int
	Thereafter int
}

// RedactionConfig lists field names whose values are always masked, and
// value patterns masked wherever they occur in a message, string field or
// error.
type RedactionConfig struct {
	Fields   []string
	Patterns []string
}

// NewDefaultConfig returns the settings for a sync run. Logs go to stderr
// so stdout stays free for the run summary.
func NewDefaultConfig() *Config {
	return &Config{
		Level:           zapcore.InfoLevel,
		Format:          "console",
		Output:          OutputStderr,
		StacktraceLevel: zapcore.DPanicLevel,
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    10,
			Thereafter: 10,
		},
		Fields: map[string]string{
			"service": "projindex",
		},
		Redaction: RedactionConfig{
			Fields: []string{"api_key", "authorization", "token", "access_token", "secret"},
			Patterns: []string{
				`lin_(api|oauth)_[A-Za-z0-9]+`,
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// FromAppConfig derives logger settings from the log section of the
// application config. Debug and trace runs get caller info and no sampling.
func FromAppConfig(lc config.LogConfig) (*Config, error) {
	cfg := NewDefaultConfig()

	level, err := ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	if lc.Format != "" {
		cfg.Format = lc.Format
	}
	if level < zapcore.InfoLevel {
		cfg.AddCaller = true
		cfg.Sampling.Enabled = false
	}
	return cfg, nil
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if c.Output != OutputStdout && c.Output != OutputStderr {
		return fmt.Errorf("output must be %q or %q, got %q", OutputStdout, OutputStderr, c.Output)
	}
	if c.Sampling.Enabled && (c.Sampling.Tick <= 0 || c.Sampling.Initial <= 0) {
		return errors.New("sampling needs a positive tick and initial count")
	}
	for _, p := range c.Redaction.Patterns {
		if len(p) > maxPatternLength {
			return fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLength, p)
		}
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("constant field %q=%q needs a key and a value", k, v)
		}
	}
	return nil
}
