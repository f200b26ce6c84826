package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jorge-barreto/appgen/internal/completion"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = ".appgen/config.yaml"

type Config struct {
	Backend      string  `yaml:"backend" validate:"oneof=openai claude"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"api-key"`
	BaseURL      string  `yaml:"base-url" validate:"omitempty,url"`
	ClaudeBinary string  `yaml:"claude-binary"`
	Timeout      int     `yaml:"timeout" validate:"gte=1,lte=3600"`
	MaxAttempts  int     `yaml:"max-attempts" validate:"gte=1,lte=20"`
	BackoffMS    int     `yaml:"backoff-ms" validate:"gte=0"`
	MaxBackoffMS int     `yaml:"max-backoff-ms" validate:"gte=0"`
	RateLimit    float64 `yaml:"rate-limit" validate:"gte=0"`

	Workers        int  `yaml:"workers" validate:"gte=1,lte=64"`
	Regenerate     int  `yaml:"regenerate" validate:"gte=0,lte=5"`
	Reconcile      bool `yaml:"reconcile"`
	StrictPlanning bool `yaml:"strict-planning"`

	OutputDir string `yaml:"output-dir" validate:"required"`
	StateDir  string `yaml:"state-dir" validate:"required"`
	LogLevel  string `yaml:"log-level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend:      "openai",
		ClaudeBinary: "claude",
		Timeout:      120,
		MaxAttempts:  4,
		BackoffMS:    500,
		MaxBackoffMS: 8000,
		Workers:      4,
		Regenerate:   1,
		Reconcile:    true,
		OutputDir:    "site",
		StateDir:     ".appgen",
		LogLevel:     "info",
	}
}

// Load reads a YAML config file over the defaults and validates it. A
// missing file is not an error. ${VAR} references are expanded from the
// environment before decoding.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, Validate(cfg)
		}
		return nil, err
	}
	expanded := os.Expand(string(data), os.Getenv)
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", filepath.Base(path), err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CompletionSettings converts the retry and pacing keys.
func (c *Config) CompletionSettings() completion.Settings {
	return completion.Settings{
		Timeout:        time.Duration(c.Timeout) * time.Second,
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: time.Duration(c.BackoffMS) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxBackoffMS) * time.Millisecond,
		RateLimit:      c.RateLimit,
	}
}

// ResolveAPIKey returns the configured key, falling back to OPENAI_API_KEY.
func (c *Config) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}
