// Package config loads the three configuration documents the pipeline
// depends on (selection criteria, sources, venues are loaded by their
// owning packages) plus process-level settings from the environment.
// Configuration failures are fatal: a run never starts on a bad config.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level settings, resolved from environment
// variables (optionally seeded from a .env file).
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	ConfigDir string `envconfig:"AGENDA_CONFIG_DIR" default:"config"`
	DataDir   string `envconfig:"AGENDA_DATA_DIR" default:"data"`
}

// Load reads process configuration from the environment. A missing
// .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks process-level settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ConfigDir) == "" {
		return fmt.Errorf("AGENDA_CONFIG_DIR is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("AGENDA_DATA_DIR is required")
	}
	return nil
}

// Error is a fatal configuration error. Per-record problems never use
// it; only malformed or missing configuration documents do.
type Error struct {
	Document string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Document, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
