package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	Sampling SamplingConfig    `koanf:"sampling"`
	Caller   bool              `koanf:"caller"`
	Fields   map[string]string `koanf:"fields"`
}

// SamplingConfig controls log volume reduction below Error.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
}

// NewDefaultConfig returns config with CLI-friendly defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "console",
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Fields: map[string]string{
			"service": "qrepair",
		},
	}
}

// ZapLevel parses Level.
func (c *Config) ZapLevel() (zapcore.Level, error) {
	return LevelFromString(c.Level)
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if _, err := c.ZapLevel(); err != nil {
		return fmt.Errorf("invalid level %q: %w", c.Level, err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if c.Sampling.Enabled {
		if c.Sampling.Tick <= 0 {
			return fmt.Errorf("sampling tick must be > 0 when sampling enabled")
		}
		if c.Sampling.Initial < 0 || c.Sampling.Thereafter < 0 {
			return fmt.Errorf("sampling counts must be >= 0")
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			return fmt.Errorf("field key cannot be empty")
		}
		if v == "" {
			return fmt.Errorf("field %q has empty value", k)
		}
	}
	return nil
}
