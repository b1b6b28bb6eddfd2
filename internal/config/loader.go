package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "QREPAIR_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// nestedSections lists the sub-sections reachable from environment
// variables, keyed by their parent section.
var nestedSections = map[string][]string{
	"preferences": {"weights"},
	"logging":     {"sampling", "fields"},
}

// Load loads configuration from an optional YAML file, then overrides it
// with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (QREPAIR_TRAINING_EPISODES, QREPAIR_METRIC_TIMEOUT, etc.)
//  2. YAML config file at configPath
//  3. Defaults
//
// An empty configPath, or one naming a file that does not exist, skips the
// file layer.
//
// # Environment Variable Mapping
//
//	QREPAIR_KNOWLEDGE_PATH                   -> knowledge.path
//	QREPAIR_TRAINING_MAX_STEPS               -> training.max_steps
//	QREPAIR_PREFERENCES_ACTIVE=2,4           -> preferences.active
//	QREPAIR_PREFERENCES_WEIGHTS_REPAIR_HIGH  -> preferences.weights.repair_high
//	QREPAIR_LOGGING_SAMPLING_ENABLED         -> logging.sampling.enabled
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns nil content when path does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	// Validate through the open descriptor to avoid a TOCTOU race.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// listKeys are split on commas when set from the environment.
var listKeys = map[string]bool{
	"preferences.active": true,
}

func envValue(name, value string) (string, interface{}) {
	key := envKey(name)
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}

// envKey maps QREPAIR_SECTION_FIELD_NAME to section.field_name, splitting
// known sub-sections into their own level.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, found := strings.CutPrefix(field, sub+"_"); found {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}
