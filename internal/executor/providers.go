package executor

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// NewAnthropicModel creates an Anthropic-backed model. The API key falls
// back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicModel(apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_INVALID, "anthropic API key not configured")
	}

	opts := []anthropic.Option{anthropic.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, anthropic.WithModel(model))
	}
	return anthropic.New(opts...)
}

// NewOpenAIModel creates an OpenAI-backed model. The API key falls back
// to the OPENAI_API_KEY environment variable.
func NewOpenAIModel(apiKey, model string) (llms.Model, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, types.NewError(types.CONFIG_INVALID, "openai API key not configured")
	}

	opts := []openai.Option{openai.WithToken(apiKey)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	return openai.New(opts...)
}

// NewOllamaModel creates a local Ollama-backed model.
func NewOllamaModel(serverURL, model string) (llms.Model, error) {
	if model == "" {
		return nil, types.NewError(types.CONFIG_INVALID, "ollama model name is required")
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	return ollama.New(opts...)
}

// NewModel creates a model for the named provider. Supported providers:
// anthropic, openai, ollama.
func NewModel(provider, apiKey, model, serverURL string) (llms.Model, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicModel(apiKey, model)
	case "openai":
		return NewOpenAIModel(apiKey, model)
	case "ollama":
		return NewOllamaModel(serverURL, model)
	default:
		return nil, types.NewError(types.CONFIG_INVALID, fmt.Sprintf("unknown provider %q", provider))
	}
}

// ResolverForProvider builds a ModelResolver that constructs models on
// demand for agent overrides, reusing the given credentials.
func ResolverForProvider(apiKey, serverURL string) ModelResolver {
	return func(ref AgentRef) (llms.Model, error) {
		return NewModel(ref.Provider, apiKey, ref.Model, serverURL)
	}
}
