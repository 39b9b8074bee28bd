package config

import (
	"fmt"
	"strings"

	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

var knownProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"ollama":    true,
}

// Validate checks settings for values the engine cannot run with.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Agent.Provider != "" && !knownProviders[strings.ToLower(cfg.Agent.Provider)] {
		problems = append(problems, fmt.Sprintf("unknown provider %q", cfg.Agent.Provider))
	}
	if cfg.Engine.Concurrency < 0 {
		problems = append(problems, "engine.concurrency must be >= 0")
	}
	if cfg.Engine.Timeout < 0 {
		problems = append(problems, "engine.timeout must be >= 0")
	}
	if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
		problems = append(problems, "tracing.sample_rate must be within [0, 1]")
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		problems = append(problems, "tracing.endpoint is required when tracing is enabled")
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown logging format %q", cfg.Logging.Format))
	}

	if len(problems) > 0 {
		return types.NewError(types.CONFIG_INVALID, strings.Join(problems, "; "))
	}
	return nil
}
