package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/aussiebroadwan/coselpro/pkg/httpx"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultProfileName is the optional profile file in the home directory.
const DefaultProfileName = ".coselpro.yaml"

type Config struct {
	URL          string        // Gateway base URL; asked for at login when empty
	Schema       string        // Gateway schema (default: rest)
	Login        string        // Login offered at the credentials prompt
	TokenFile    string        // Token cache path (default: ~/coselpro_token.json)
	SafetyMargin time.Duration // Renew tokens expiring within this margin (default: 5m)
	Timeout      time.Duration // Per-request timeout (default: 30s)
	RetryMax     int           // Retries on network failures (default: 3)
	Env          string        // Environment (dev, prod) (default: prod)
	LogLevel     string        // Log level (debug, info, warn, error) (default: warn)
	LogFormat    string        // Log format (json, text) (default: text)
	RateLimit    httpx.RateLimitConfig
}

// profile is the YAML shape of the profile file. Durations use Go syntax.
type profile struct {
	URL          string `yaml:"url"`
	Schema       string `yaml:"schema"`
	Login        string `yaml:"login"`
	TokenFile    string `yaml:"token_file"`
	SafetyMargin string `yaml:"safety_margin"`
	Timeout      string `yaml:"timeout"`
}

// LoadConfig reads .env from the working directory, then the profile file, then
// the environment; later sources win. A missing .env or profile is not an
// error, a malformed profile is.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Schema:       coselpro.DefaultSchema,
		SafetyMargin: coselpro.DefaultSafetyMargin,
		Timeout:      coselpro.DefaultTimeout,
	}

	if err := cfg.applyProfile(profilePath()); err != nil {
		return Config{}, err
	}

	cfg.URL = getEnvOrDefault("COSELPRO_URL", cfg.URL)
	cfg.Schema = getEnvOrDefault("COSELPRO_SCHEMA", cfg.Schema)
	cfg.Login = getEnvOrDefault("COSELPRO_LOGIN", cfg.Login)
	cfg.TokenFile = getEnvOrDefault("COSELPRO_TOKEN_FILE", cfg.TokenFile)
	cfg.SafetyMargin = getEnvDurationOrDefault("COSELPRO_SAFETY_MARGIN", cfg.SafetyMargin)
	cfg.Timeout = getEnvDurationOrDefault("COSELPRO_TIMEOUT", cfg.Timeout)
	cfg.RetryMax = getEnvIntOrDefault("COSELPRO_RETRY_MAX", 3)
	cfg.Env = getEnvOrDefault("ENV", "prod")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "warn")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "text")
	cfg.RateLimit = httpx.ParseRateLimitFromEnv("CLIENT", httpx.DefaultClientLimit)

	return cfg, nil
}

// profilePath returns COSELPRO_CONFIG, or the profile in the home directory.
func profilePath() string {
	if path := os.Getenv("COSELPRO_CONFIG"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultProfileName)
}

func (cfg *Config) applyProfile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var p profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if p.URL != "" {
		cfg.URL = p.URL
	}
	if p.Schema != "" {
		cfg.Schema = p.Schema
	}
	if p.Login != "" {
		cfg.Login = p.Login
	}
	if p.TokenFile != "" {
		cfg.TokenFile = p.TokenFile
	}
	if p.SafetyMargin != "" {
		d, err := time.ParseDuration(p.SafetyMargin)
		if err != nil {
			return fmt.Errorf("failed to parse profile %s: safety_margin: %w", path, err)
		}
		cfg.SafetyMargin = d
	}
	if p.Timeout != "" {
		d, err := time.ParseDuration(p.Timeout)
		if err != nil {
			return fmt.Errorf("failed to parse profile %s: timeout: %w", path, err)
		}
		cfg.Timeout = d
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
