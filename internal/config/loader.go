package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// dotEnvFile is read from the working directory when present.
	dotEnvFile = ".env"
)

// sections are the top-level config keys environment variables may target,
// mapped to whether the key is a nested section (true) or a plain value.
var sections = map[string]bool{
	"linear":      true,
	"database":    true,
	"log":         true,
	"initiatives": false,
}

// LoadWithFile loads configuration from a YAML file, a .env file in the
// working directory, and environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (LINEAR_API_KEY, DATABASE_PATH, etc.)
//  2. .env file in the working directory
//  3. YAML config file (~/.config/projindex/config.yaml)
//  4. Hardcoded defaults
//
// The configPath parameter specifies the YAML file to load. If empty, uses
// the default path. A missing file is not an error.
//
// Configuration files MUST have 0600 or 0400 permissions since they may
// carry the API key, and must not exceed 1MB.
//
// # Environment Variable Mapping
//
// Variables are split on the first underscore into section and field:
//
//	LINEAR_API_KEY   -> linear.api_key
//	DATABASE_PATH    -> database.path
//	INITIATIVES      -> initiatives (comma separated)
//
// Variables whose section is not a known config section are ignored.
func LoadWithFile(configPath string) (*Config, error) {
	return load(configPath, dotEnvFile)
}

func load(configPath, envFile string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "projindex", "config.yaml")
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if envFile != "" {
		if err := loadDotEnv(k, envFile); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Initiatives = normalizeInitiatives(cfg.Initiatives)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps an environment variable name onto a config key.
// Returns "" for variables outside the known sections so koanf skips them.
//
//	LINEAR_REQUESTS_PER_SECOND -> linear.requests_per_second
func envKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)

	nested, known := sections[parts[0]]
	if !known {
		return ""
	}
	if len(parts) == 1 {
		if nested {
			return ""
		}
		return parts[0]
	}
	if !nested {
		return ""
	}
	return parts[0] + "." + parts[1]
}

// loadDotEnv merges KEY=value pairs from path, if it exists, using the same
// key mapping as process environment variables.
func loadDotEnv(k *koanf.Koanf, path string) error {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	values, err := dotenv.Parser().Unmarshal(content)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for name, value := range values {
		key := envKey(name)
		if key == "" {
			continue
		}
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("failed to apply %s from %s: %w", name, path, err)
		}
	}
	return nil
}

// readConfigFile returns the file content, or nil if the file does not exist.
// The file is opened once and validated through the descriptor to avoid a
// TOCTOU race between the permission check and the read.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Skip on Windows (different permission model)
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
