package swarm

import (
	"fmt"
	"time"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/retry"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// RetryConfig configures whole-unit retry for an operation's items. The
// unit is the entire verify- or bestOf-wrapped execution, not just the
// innermost worker call.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, counting the first.
	// Zero means the default of 3; values below zero are rejected.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Backoff is the delay before the second attempt. Default 1s.
	Backoff time.Duration `yaml:"backoff,omitempty"`

	// Multiplier scales the delay exponentially. Default 2.
	Multiplier float64 `yaml:"multiplier,omitempty"`

	// RetryOn decides whether a result warrants another attempt.
	// Default: status is error.
	RetryOn func(Result) bool `yaml:"-"`
}

func (c *RetryConfig) validate() error {
	if c == nil {
		return nil
	}
	if c.MaxAttempts < 0 {
		return types.NewError(types.CONFIG_INVALID, "retry.max_attempts must be >= 1")
	}
	return nil
}

// policy lowers the config into a retry.Policy over Result values.
func (c *RetryConfig) policy(itemIndex int, cb Callbacks) retry.Policy[Result] {
	p := retry.Policy[Result]{
		RetryOn: func(r Result) bool { return r.Status == StatusError },
		ErrorOf: func(r Result) string { return r.Error },
		OnRetry: cb.itemRetry,
	}
	if c == nil {
		p.MaxAttempts = 1
		return p
	}
	p.MaxAttempts = c.MaxAttempts
	p.Backoff = c.Backoff
	p.Multiplier = c.Multiplier
	if c.RetryOn != nil {
		p.RetryOn = c.RetryOn
	}
	return p
}

// VerifyConfig configures the LLM-as-judge verification loop wrapped
// around an item's worker execution.
type VerifyConfig struct {
	// Criteria is the free-text standard the verifier judges against.
	Criteria string `yaml:"criteria"`

	// MaxAttempts bounds worker attempts, counting the initial one.
	// Default 3.
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Agent optionally overrides the verifier agent.
	Agent executor.AgentRef `yaml:"agent,omitempty"`
}

func (c *VerifyConfig) validate() error {
	if c == nil {
		return nil
	}
	if c.Criteria == "" {
		return types.NewError(types.CONFIG_INVALID, "verify.criteria is required")
	}
	if c.MaxAttempts < 0 {
		return types.NewError(types.CONFIG_INVALID, "verify.max_attempts must be >= 1")
	}
	return nil
}

func (c *VerifyConfig) maxAttempts() int {
	if c.MaxAttempts < 1 {
		return 3
	}
	return c.MaxAttempts
}

// BestOfConfig configures the generate-N-then-select-best composition.
type BestOfConfig struct {
	// N is the candidate count (>= 2). When CandidateAgents is given, N
	// is inferred from its length and must not disagree.
	N int `yaml:"n,omitempty"`

	// JudgeCriteria is the standard the judge ranks candidates against.
	JudgeCriteria string `yaml:"judge_criteria"`

	// CandidateAgents optionally assigns a distinct agent per candidate.
	CandidateAgents []executor.AgentRef `yaml:"candidate_agents,omitempty"`

	// JudgeAgent optionally overrides the judge agent.
	JudgeAgent executor.AgentRef `yaml:"judge_agent,omitempty"`
}

// resolvedN returns the effective candidate count.
func (c *BestOfConfig) resolvedN() int {
	if len(c.CandidateAgents) > 0 {
		return len(c.CandidateAgents)
	}
	return c.N
}

func (c *BestOfConfig) validate() error {
	if c == nil {
		return nil
	}
	if c.JudgeCriteria == "" {
		return types.NewError(types.CONFIG_INVALID, "bestOf.judge_criteria is required")
	}
	n := c.resolvedN()
	if n < 2 {
		return types.NewError(types.CONFIG_INVALID, fmt.Sprintf("bestOf requires n >= 2, got %d", n))
	}
	if len(c.CandidateAgents) > 0 && c.N > 0 && c.N != len(c.CandidateAgents) {
		return types.NewError(types.CONFIG_INVALID,
			fmt.Sprintf("bestOf.n (%d) disagrees with candidate agent count (%d)", c.N, len(c.CandidateAgents)))
	}
	return nil
}

// agentFor returns the agent for a candidate index, falling back to def.
func (c *BestOfConfig) agentFor(candidate int, def executor.AgentRef) executor.AgentRef {
	if candidate < len(c.CandidateAgents) {
		return c.CandidateAgents[candidate]
	}
	return def
}

// taskSpec is the worker-facing slice of an operation config.
type taskSpec struct {
	prompt       string
	systemPrompt string
	schema       *types.JSONSchema
	agent        executor.AgentRef
	timeout      time.Duration
}

func (t taskSpec) input(files types.FileMap) executor.WorkerInput {
	return executor.WorkerInput{
		Files:        files,
		Prompt:       t.prompt,
		SystemPrompt: t.systemPrompt,
		Schema:       t.schema,
		Agent:        t.agent,
		Timeout:      t.timeout,
	}
}

// MapConfig configures a Map operation: transform each item independently.
type MapConfig struct {
	// Prompt is the per-item task instruction. Required.
	Prompt string

	// SystemPrompt optionally overrides the worker system instruction.
	SystemPrompt string

	// Schema, when set, requires structured output per item.
	Schema *types.JSONSchema

	// Agent optionally overrides the worker agent.
	Agent executor.AgentRef

	// Timeout bounds each worker execution, forwarded opaquely.
	Timeout time.Duration

	// Tag labels the operation in result metadata.
	Tag string

	// Retry wraps each item's whole unit in retry-with-backoff.
	Retry *RetryConfig

	// Verify wraps each item's worker in a verification loop.
	// Mutually exclusive with BestOf.
	Verify *VerifyConfig

	// BestOf runs N candidates per item and judges a winner.
	// Mutually exclusive with Verify.
	BestOf *BestOfConfig

	// Callbacks is the optional observability sink.
	Callbacks Callbacks
}

func (c MapConfig) validate() error {
	if c.Prompt == "" {
		return types.NewError(types.CONFIG_INVALID, "map.prompt is required")
	}
	if c.Verify != nil && c.BestOf != nil {
		return types.NewError(types.CONFIG_INVALID, "verify and bestOf are mutually exclusive per call")
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	if err := c.Verify.validate(); err != nil {
		return err
	}
	return c.BestOf.validate()
}

func (c MapConfig) task() taskSpec {
	return taskSpec{c.Prompt, c.SystemPrompt, c.Schema, c.Agent, c.Timeout}
}

// FilterConfig configures a Filter operation: evaluate each item and gate
// it on a locally applied condition. Filter never mutates content; result
// files are always the original input files.
type FilterConfig struct {
	// Prompt is the evaluator instruction. Required.
	Prompt string

	// SystemPrompt optionally overrides the evaluator system instruction.
	SystemPrompt string

	// Schema is the required shape of the evaluator's structured output.
	Schema *types.JSONSchema

	// Condition classifies well-formed evaluator data as success (true)
	// or filtered (false). Applied locally, never inside the worker.
	Condition func(data map[string]any) bool

	// Agent optionally overrides the evaluator agent.
	Agent executor.AgentRef

	// Timeout bounds each evaluator execution.
	Timeout time.Duration

	// Tag labels the operation in result metadata.
	Tag string

	// Retry wraps each item's evaluation in retry-with-backoff.
	Retry *RetryConfig

	// Callbacks is the optional observability sink.
	Callbacks Callbacks
}

func (c FilterConfig) validate() error {
	if c.Prompt == "" {
		return types.NewError(types.CONFIG_INVALID, "filter.prompt is required")
	}
	if c.Schema == nil {
		return types.NewError(types.CONFIG_INVALID, "filter.schema is required")
	}
	if c.Condition == nil {
		return types.NewError(types.CONFIG_INVALID, "filter.condition is required")
	}
	return c.Retry.validate()
}

func (c FilterConfig) task() taskSpec {
	return taskSpec{c.Prompt, c.SystemPrompt, c.Schema, c.Agent, c.Timeout}
}

// ReduceConfig configures a Reduce operation: synthesize all items into
// one output via a single worker call.
type ReduceConfig struct {
	// Prompt is the synthesis instruction. Required.
	Prompt string

	// SystemPrompt optionally overrides the worker system instruction.
	SystemPrompt string

	// Schema, when set, requires structured output.
	Schema *types.JSONSchema

	// Agent optionally overrides the worker agent.
	Agent executor.AgentRef

	// Timeout bounds the worker execution.
	Timeout time.Duration

	// Tag labels the operation in result metadata.
	Tag string

	// Retry wraps the whole reduce unit in retry-with-backoff.
	Retry *RetryConfig

	// Verify wraps the worker in a verification loop.
	Verify *VerifyConfig

	// Callbacks is the optional observability sink.
	Callbacks Callbacks
}

func (c ReduceConfig) validate() error {
	if c.Prompt == "" {
		return types.NewError(types.CONFIG_INVALID, "reduce.prompt is required")
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	return c.Verify.validate()
}

func (c ReduceConfig) task() taskSpec {
	return taskSpec{c.Prompt, c.SystemPrompt, c.Schema, c.Agent, c.Timeout}
}

// BestOfParams configures a standalone BestOf call over one input.
type BestOfParams struct {
	// Prompt is the candidate task instruction. Required.
	Prompt string

	// SystemPrompt optionally overrides the worker system instruction.
	SystemPrompt string

	// Schema, when set, requires structured output per candidate.
	Schema *types.JSONSchema

	// Agent is the default candidate agent when no per-candidate agents
	// are configured.
	Agent executor.AgentRef

	// Timeout bounds each candidate and judge execution.
	Timeout time.Duration

	// Tag labels the operation in result metadata.
	Tag string

	// BestOf carries the candidate/judge protocol settings. Required.
	BestOf BestOfConfig

	// Retry wraps the whole candidates-plus-judge unit.
	Retry *RetryConfig

	// Callbacks is the optional observability sink.
	Callbacks Callbacks
}

func (c BestOfParams) validate() error {
	if c.Prompt == "" {
		return types.NewError(types.CONFIG_INVALID, "bestOf.prompt is required")
	}
	if err := c.Retry.validate(); err != nil {
		return err
	}
	return c.BestOf.validate()
}

func (c BestOfParams) task() taskSpec {
	return taskSpec{c.Prompt, c.SystemPrompt, c.Schema, c.Agent, c.Timeout}
}
