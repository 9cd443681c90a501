package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/fieldline/fieldline/pkg/telemetry"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required"`

	// RetentionDays bounds how long finished runs are kept. Zero keeps
	// them forever.
	RetentionDays int `yaml:"retention_days" validate:"gte=0"`
}

// Config is the top-level application configuration.
type Config struct {
	// Telemetry configures logging, tracing, and metrics.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// History configures the run history store.
	History HistoryConfig `yaml:"history"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Telemetry: *telemetry.DefaultConfig(),
		History: HistoryConfig{
			Path:          defaultHistoryPath(),
			RetentionDays: 90,
		},
	}
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fieldline-history.db"
	}
	return filepath.Join(home, ".fieldline", "history.db")
}

// Load reads, expands, and validates a configuration file. Values of the
// form ${VAR} are substituted from the environment before parsing, so
// secrets stay out of the file itself.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration's invariants.
func (c *Config) Validate() error {
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}
