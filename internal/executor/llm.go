package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// OutputFileName is where the LLM executor places the worker's reply in
// the outcome file set.
const OutputFileName = "output.md"

// DefaultTimeout bounds LLM worker executions when the input carries none.
const DefaultTimeout = 5 * time.Minute

// ModelResolver maps an agent override to a concrete model. Used when a
// bestOf composition assigns distinct agents to candidates.
type ModelResolver func(ref AgentRef) (llms.Model, error)

// LLMExecutor is the reference WorkerExecutor: each worker execution is
// one LLM completion over the rendered input files and prompt. Structured
// output is requested in JSON mode and validated against the input schema.
type LLMExecutor struct {
	model    llms.Model
	resolver ModelResolver
	timeout  time.Duration
	logger   *slog.Logger
}

// LLMOption is a functional option for configuring LLMExecutor.
type LLMOption func(*LLMExecutor)

// WithLogger configures the executor to use the specified structured logger.
func WithLogger(logger *slog.Logger) LLMOption {
	return func(e *LLMExecutor) {
		e.logger = logger
	}
}

// WithDefaultTimeout sets the timeout applied when the worker input has none.
func WithDefaultTimeout(d time.Duration) LLMOption {
	return func(e *LLMExecutor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithModelResolver configures how agent overrides resolve to models.
// Without one, overrides fall back to the default model.
func WithModelResolver(r ModelResolver) LLMOption {
	return func(e *LLMExecutor) {
		e.resolver = r
	}
}

// NewLLMExecutor creates an LLMExecutor over the given default model.
func NewLLMExecutor(model llms.Model, opts ...LLMOption) *LLMExecutor {
	e := &LLMExecutor{
		model:   model,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements WorkerExecutor. Failures are encoded in the outcome;
// this method never panics and never returns a Go error.
func (e *LLMExecutor) Execute(ctx context.Context, input WorkerInput) WorkerOutcome {
	model, err := e.resolveModel(input.Agent)
	if err != nil {
		return ErrorOutcome(types.WrapError(types.EXECUTOR_FAILED, "agent resolution failed", err))
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, e.systemPrompt(input)),
		llms.TextParts(llms.ChatMessageTypeHuman, renderUserMessage(input)),
	}

	callOpts := []llms.CallOption{}
	if input.Agent.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(input.Agent.Temperature))
	}
	if input.Schema != nil {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	started := time.Now()
	resp, err := model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrorOutcome(types.NewRetryableError(types.EXECUTOR_TIMEOUT,
				fmt.Sprintf("worker execution exceeded %s", timeout)))
		}
		return ErrorOutcome(types.WrapError(types.EXECUTOR_FAILED, "completion call failed", err))
	}
	if len(resp.Choices) == 0 {
		return ErrorOutcome(types.NewError(types.EXECUTOR_FAILED, "model returned no choices"))
	}

	reply := resp.Choices[0].Content
	e.logger.DebugContext(ctx, "worker completion finished",
		"duration", time.Since(started),
		"reply_bytes", len(reply),
	)

	outcome := WorkerOutcome{
		Status: OutcomeSuccess,
		Files:  types.FileMap{OutputFileName: []byte(reply)},
	}

	if input.Schema == nil {
		return outcome
	}
	return e.parseStructured(outcome, reply, input.Schema)
}

// parseStructured extracts and validates the structured reply. Validation
// failure downgrades the outcome to error status but keeps the raw reply.
func (e *LLMExecutor) parseStructured(outcome WorkerOutcome, reply string, schema *types.JSONSchema) WorkerOutcome {
	outcome.RawOutput = reply

	doc, err := extractJSON(reply)
	if err != nil {
		outcome.Status = OutcomeError
		outcome.Error = types.WrapError(types.VALIDATION_FAILED, "no structured output in reply", err).Error()
		return outcome
	}
	outcome.RawOutput = doc

	var data map[string]any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		outcome.Status = OutcomeError
		outcome.Error = types.WrapError(types.VALIDATION_FAILED, "structured output is not a JSON object", err).Error()
		return outcome
	}

	if missing := missingRequired(data, schema); len(missing) > 0 {
		outcome.Status = OutcomeError
		outcome.Error = types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("structured output missing required properties: %s", strings.Join(missing, ", "))).Error()
		return outcome
	}

	outcome.Data = data
	return outcome
}

func (e *LLMExecutor) resolveModel(ref AgentRef) (llms.Model, error) {
	if ref.IsZero() || e.resolver == nil {
		return e.model, nil
	}
	return e.resolver(ref)
}

func (e *LLMExecutor) systemPrompt(input WorkerInput) string {
	var b strings.Builder
	if input.SystemPrompt != "" {
		b.WriteString(input.SystemPrompt)
	} else {
		b.WriteString("You are a worker executing one task over the provided files.")
	}
	if input.Schema != nil {
		schemaJSON, _ := json.MarshalIndent(input.Schema, "", "  ")
		b.WriteString("\n\nRespond with a single JSON object conforming to this schema:\n")
		b.Write(schemaJSON)
	}
	return b.String()
}

// renderUserMessage lays the input files out under the task prompt so the
// model sees path-addressed content blocks.
func renderUserMessage(input WorkerInput) string {
	var b strings.Builder
	b.WriteString(input.Prompt)
	if len(input.Files) > 0 {
		b.WriteString("\n\n## Input files\n")
		for _, path := range input.Files.Paths() {
			b.WriteString("\n### ")
			b.WriteString(path)
			b.WriteString("\n```\n")
			b.Write(input.Files[path])
			b.WriteString("\n```\n")
		}
	}
	return b.String()
}

// missingRequired returns required top-level schema properties absent from data.
func missingRequired(data map[string]any, schema *types.JSONSchema) []string {
	var missing []string
	for _, key := range schema.Required {
		if _, ok := data[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
