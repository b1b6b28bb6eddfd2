// Package config loads qrepair configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// QREPAIR_ environment variables, each layer overriding the previous one.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/fyrsmithlabs/qrepair/internal/logging"
	"github.com/fyrsmithlabs/qrepair/internal/reward"
	"github.com/fyrsmithlabs/qrepair/internal/trainer"
)

// Config holds the complete qrepair configuration.
type Config struct {
	Knowledge   KnowledgeConfig   `koanf:"knowledge"`
	Preferences PreferencesConfig `koanf:"preferences"`
	Training    trainer.Config    `koanf:"training"`
	Metric      MetricConfig      `koanf:"metric"`
	Logging     logging.Config    `koanf:"logging"`
}

// KnowledgeConfig locates the persisted knowledge table.
type KnowledgeConfig struct {
	// Path names the knowledge file. Its extension selects the format:
	// .xml, .yaml or .yml.
	Path string `koanf:"path"`
}

// PreferencesConfig selects the active reward preferences.
type PreferencesConfig struct {
	Active  []int          `koanf:"active"`
	Weights reward.Weights `koanf:"weights"`
}

// MetricConfig bounds the maintainability metric.
type MetricConfig struct {
	Timeout Duration `koanf:"timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Knowledge: KnowledgeConfig{
			Path: "knowledge.xml",
		},
		Preferences: PreferencesConfig{
			Weights: reward.DefaultWeights(),
		},
		Training: trainer.DefaultConfig(),
		Metric: MetricConfig{
			Timeout: Duration(reward.DefaultMetricTimeout),
		},
		Logging: *logging.NewDefaultConfig(),
	}
}

// Options converts the active preference ids.
func (c *Config) Options() []reward.Option {
	out := make([]reward.Option, 0, len(c.Preferences.Active))
	for _, id := range c.Preferences.Active {
		out = append(out, reward.Option(id))
	}
	return out
}

// MetricTimeout returns the maintainability metric timeout.
func (c *Config) MetricTimeout() time.Duration {
	return c.Metric.Timeout.Duration()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Knowledge.Path == "" {
		errs = append(errs, errors.New("knowledge.path is required"))
	} else if _, err := knowledge.FormatFromPath(c.Knowledge.Path); err != nil {
		errs = append(errs, fmt.Errorf("knowledge.path: %w", err))
	}

	seen := make(map[int]bool, len(c.Preferences.Active))
	for _, id := range c.Preferences.Active {
		if !reward.Option(id).Valid() {
			errs = append(errs, fmt.Errorf("preferences.active: unknown preference %d", id))
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("preferences.active: duplicate preference %d", id))
		}
		seen[id] = true
	}
	if err := validateWeights(c.Preferences.Weights); err != nil {
		errs = append(errs, err)
	}

	if err := c.Training.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("training: %w", err))
	}
	if c.Metric.Timeout.Duration() <= 0 {
		errs = append(errs, errors.New("metric.timeout must be positive"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	return errors.Join(errs...)
}

func validateWeights(w reward.Weights) error {
	weights := []struct {
		name  string
		value int
	}{
		{"shorter_sequences", w.ShorterSequences},
		{"longer_sequences", w.LongerSequences},
		{"repair_high", w.RepairHigh},
		{"repair_low", w.RepairLow},
		{"punish_deletion", w.PunishDeletion},
		{"punish_modification", w.PunishModification},
		{"reward_modification", w.RewardModification},
	}

	var errs []error
	for _, weight := range weights {
		if weight.value < 0 {
			errs = append(errs, fmt.Errorf("preferences.weights.%s cannot be negative, got %d", weight.name, weight.value))
		}
	}
	return errors.Join(errs...)
}
