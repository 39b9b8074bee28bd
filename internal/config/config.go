// Package config loads and validates engine settings and YAML pipeline
// definitions.
package config

import (
	"time"

	"github.com/evolving-machines-lab/evolve-sub003/internal/observability"
)

// Config is the engine's runtime settings, loaded from a YAML settings
// file with ${VAR} environment interpolation.
type Config struct {
	Agent   AgentConfig                 `yaml:"agent" mapstructure:"agent"`
	Engine  EngineConfig                `yaml:"engine" mapstructure:"engine"`
	Logging observability.LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// AgentConfig names the default model workers execute against.
type AgentConfig struct {
	// Provider is one of anthropic, openai, ollama.
	Provider string `yaml:"provider" mapstructure:"provider"`

	// Model is the provider-specific model name.
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey authenticates against the provider. Usually set via
	// ${ANTHROPIC_API_KEY} or similar in the settings file; falls back to
	// the provider's conventional environment variable when empty.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Temperature is the sampling temperature forwarded to the model.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// EngineConfig tunes the execution engine.
type EngineConfig struct {
	// Concurrency is the global worker-execution ceiling. Zero means the
	// engine default.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`

	// Timeout bounds each worker execution. Zero means the executor
	// default.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns the settings used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Provider: "anthropic",
		},
		Engine: EngineConfig{
			Concurrency: 4,
			Timeout:     5 * time.Minute,
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
