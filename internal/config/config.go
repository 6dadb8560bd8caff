// Package config holds all arbiter configuration, loaded from a YAML file
// with environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"arbiter/internal/stabilize"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Name string `yaml:"name"`

	// LLM configures the regenerator client.
	LLM LLMConfig `yaml:"llm"`

	// Stabilization bounds the correction retry loop.
	Stabilization StabilizationConfig `yaml:"stabilization"`

	// Store configures the evaluation journal.
	Store StoreConfig `yaml:"store"`

	// Logging controls debug output.
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the external generator used for regeneration.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// StabilizationConfig mirrors stabilize.Config with a YAML-friendly
// duration string.
type StabilizationConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	Timeout     string `yaml:"timeout"`
	Difficulty  int    `yaml:"difficulty"`
}

// StoreConfig configures the SQLite evaluation journal.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "arbiter",
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "2m",
		},
		Stabilization: StabilizationConfig{
			Enabled:     true,
			MaxAttempts: 3,
			Timeout:     "2m",
			Difficulty:  1,
		},
		Store: StoreConfig{
			Path: filepath.Join(".arbiter", "journal.db"),
		},
	}
}

// Load reads a config file, applies defaults for missing fields, and then
// applies environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories as needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnvOverrides lets secrets come from the environment instead of disk.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ARBITER_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
}

// StabilizeConfig converts the YAML shape into the loop's runtime config.
// Unparsable durations fall back to the loop default.
func (c *Config) StabilizeConfig() stabilize.Config {
	out := stabilize.Config{
		Enabled:     c.Stabilization.Enabled,
		MaxAttempts: c.Stabilization.MaxAttempts,
	}
	if d, err := time.ParseDuration(c.Stabilization.Timeout); err == nil {
		out.Timeout = d
	}
	return out
}

// Difficulty returns the configured task difficulty, floored at 1.
func (c *Config) Difficulty() int {
	if c.Stabilization.Difficulty < 1 {
		return 1
	}
	return c.Stabilization.Difficulty
}

// LLMTimeout parses the client timeout, defaulting to two minutes.
func (c *Config) LLMTimeout() time.Duration {
	if d, err := time.ParseDuration(c.LLM.Timeout); err == nil && d > 0 {
		return d
	}
	return 2 * time.Minute
}
