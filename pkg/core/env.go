package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvLogLevel selects the zerolog level for adapters built from the environment.
	EnvLogLevel = "MARKETLINK_LOG_LEVEL"
	// EnvTimeout overrides the read timeout, as a Go duration string.
	EnvTimeout = "MARKETLINK_TIMEOUT"
)

// ConfigFromEnv builds a Config for the named exchange from environment variables.
// Credentials come from <NAME>_KEY and <NAME>_SECRET (e.g. BITBANK_KEY).
// The given dotenv files are loaded first; with none, an optional ./.env is tried.
// Variables already set in the process environment take precedence.
func ConfigFromEnv(exchange string, files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		if len(files) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env: %w", err)
		}
	}

	cfg := DefaultConfig(exchange)
	prefix := strings.ToUpper(exchange)
	cfg.Credentials = Credentials{
		APIKey:    os.Getenv(prefix + "_KEY"),
		APISecret: os.Getenv(prefix + "_SECRET"),
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = strings.ToLower(lvl)
	}
	if raw := os.Getenv(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		cfg.ReadTimeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
