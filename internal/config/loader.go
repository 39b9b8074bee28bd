package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads, interpolates, validates, and returns settings from path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	// Interpolate ${VAR} references before unmarshaling so secrets can
	// live in the environment rather than the file.
	raw := interpolateEnvVars(v.AllSettings())
	interpolated := viper.New()
	if err := interpolated.MergeConfigMap(raw.(map[string]any)); err != nil {
		return nil, fmt.Errorf("merging interpolated settings: %w", err)
	}

	cfg := DefaultConfig()
	if err := interpolated.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults loads settings from path, or returns the defaults when
// the file does not exist.
func LoadWithDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return Load(path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateEnvVars recursively replaces ${VAR} references in string
// values. Unset variables interpolate to the empty string.
func interpolateEnvVars(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = interpolateEnvVars(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = interpolateEnvVars(value)
		}
		return out
	case string:
		return envVarPattern.ReplaceAllStringFunc(v, func(match string) string {
			name := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
			return os.Getenv(name)
		})
	default:
		return v
	}
}
