package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/pipeline"
	"github.com/evolving-machines-lab/evolve-sub003/internal/swarm"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// PipelineFile is a declarative pipeline definition.
type PipelineFile struct {
	Name  string     `yaml:"name"`
	Steps []StepFile `yaml:"steps"`
}

// StepFile is one declared step. Kind selects which optional blocks apply.
type StepFile struct {
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"`
	Prompt       string            `yaml:"prompt"`
	SystemPrompt string            `yaml:"system_prompt,omitempty"`
	Schema       *types.JSONSchema `yaml:"schema,omitempty"`
	Agent        executor.AgentRef `yaml:"agent,omitempty"`
	Timeout      string            `yaml:"timeout,omitempty"`
	Tag          string            `yaml:"tag,omitempty"`

	Retry  *RetryFile  `yaml:"retry,omitempty"`
	Verify *VerifyFile `yaml:"verify,omitempty"`
	BestOf *BestOfFile `yaml:"best_of,omitempty"`

	// Filter-only fields.
	Condition *ConditionFile `yaml:"condition,omitempty"`
	Emit      string         `yaml:"emit,omitempty"`
}

// RetryFile declares retry-with-backoff. Durations are strings ("2s").
type RetryFile struct {
	MaxAttempts int     `yaml:"max_attempts,omitempty"`
	Backoff     string  `yaml:"backoff,omitempty"`
	Multiplier  float64 `yaml:"multiplier,omitempty"`
}

// VerifyFile declares an LLM-as-judge verification loop.
type VerifyFile struct {
	Criteria    string            `yaml:"criteria"`
	MaxAttempts int               `yaml:"max_attempts,omitempty"`
	Agent       executor.AgentRef `yaml:"agent,omitempty"`
}

// BestOfFile declares the generate-N-then-judge composition.
type BestOfFile struct {
	N               int                 `yaml:"n,omitempty"`
	JudgeCriteria   string              `yaml:"judge_criteria"`
	CandidateAgents []executor.AgentRef `yaml:"candidate_agents,omitempty"`
	JudgeAgent      executor.AgentRef   `yaml:"judge_agent,omitempty"`
}

// ConditionFile is a declarative predicate over a filter evaluator's
// structured output. Exactly one comparison is set.
type ConditionFile struct {
	// Field is the key in the evaluator's structured output.
	Field string `yaml:"field"`

	Equals      *string  `yaml:"equals,omitempty"`
	NotEquals   *string  `yaml:"not_equals,omitempty"`
	In          []string `yaml:"in,omitempty"`
	GreaterThan *float64 `yaml:"greater_than,omitempty"`
	LessThan    *float64 `yaml:"less_than,omitempty"`
}

// ParsePipeline decodes and validates a pipeline definition.
func ParsePipeline(data []byte) (*PipelineFile, error) {
	var file PipelineFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, types.WrapError(types.CONFIG_INVALID, "parsing pipeline definition", err)
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *PipelineFile) validate() error {
	if len(f.Steps) == 0 {
		return types.NewError(types.CONFIG_INVALID, "pipeline declares no steps")
	}
	for i, step := range f.Steps {
		if step.Name == "" {
			return types.NewError(types.CONFIG_INVALID, fmt.Sprintf("step %d has no name", i))
		}
		switch step.Kind {
		case "map", "reduce":
			if step.Condition != nil {
				return stepErr(step.Name, "condition is only valid on filter steps")
			}
			if step.Emit != "" {
				return stepErr(step.Name, "emit is only valid on filter steps")
			}
		case "filter":
			if step.Condition == nil {
				return stepErr(step.Name, "filter steps require a condition")
			}
			if step.Schema == nil {
				return stepErr(step.Name, "filter steps require a schema")
			}
			if step.Condition.Field == "" {
				return stepErr(step.Name, "condition.field is required")
			}
			if err := step.Condition.check(); err != nil {
				return stepErr(step.Name, err.Error())
			}
		default:
			return stepErr(step.Name, fmt.Sprintf("unknown step kind %q", step.Kind))
		}
		if step.Prompt == "" {
			return stepErr(step.Name, "prompt is required")
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				return stepErr(step.Name, fmt.Sprintf("invalid timeout %q", step.Timeout))
			}
		}
		if step.Retry != nil && step.Retry.Backoff != "" {
			if _, err := time.ParseDuration(step.Retry.Backoff); err != nil {
				return stepErr(step.Name, fmt.Sprintf("invalid retry backoff %q", step.Retry.Backoff))
			}
		}
	}
	return nil
}

func stepErr(name, msg string) error {
	return types.NewError(types.CONFIG_INVALID, fmt.Sprintf("step %q: %s", name, msg))
}

func (c *ConditionFile) check() error {
	set := 0
	if c.Equals != nil {
		set++
	}
	if c.NotEquals != nil {
		set++
	}
	if len(c.In) > 0 {
		set++
	}
	if c.GreaterThan != nil {
		set++
	}
	if c.LessThan != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("condition requires exactly one comparison, got %d", set)
	}
	return nil
}

// predicate lowers the declared comparison to a condition function.
func (c *ConditionFile) predicate() func(data map[string]any) bool {
	field := c.Field
	switch {
	case c.Equals != nil:
		want := *c.Equals
		return func(data map[string]any) bool {
			return stringValue(data[field]) == want
		}
	case c.NotEquals != nil:
		want := *c.NotEquals
		return func(data map[string]any) bool {
			return stringValue(data[field]) != want
		}
	case len(c.In) > 0:
		allowed := make(map[string]bool, len(c.In))
		for _, v := range c.In {
			allowed[v] = true
		}
		return func(data map[string]any) bool {
			return allowed[stringValue(data[field])]
		}
	case c.GreaterThan != nil:
		threshold := *c.GreaterThan
		return func(data map[string]any) bool {
			n, ok := numberValue(data[field])
			return ok && n > threshold
		}
	case c.LessThan != nil:
		threshold := *c.LessThan
		return func(data map[string]any) bool {
			n, ok := numberValue(data[field])
			return ok && n < threshold
		}
	default:
		return func(map[string]any) bool { return false }
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// Compile lowers the definition onto a pipeline builder.
func (f *PipelineFile) Compile(p *pipeline.Pipeline) (*pipeline.Pipeline, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	for _, step := range f.Steps {
		timeout, _ := time.ParseDuration(step.Timeout)
		retry := step.Retry.compile()

		switch step.Kind {
		case "map":
			p = p.Map(step.Name, swarm.MapConfig{
				Prompt:       step.Prompt,
				SystemPrompt: step.SystemPrompt,
				Schema:       step.Schema,
				Agent:        step.Agent,
				Timeout:      timeout,
				Tag:          step.Tag,
				Retry:        retry,
				Verify:       step.Verify.compile(),
				BestOf:       step.BestOf.compile(),
			})
		case "filter":
			p = p.Filter(step.Name, swarm.FilterConfig{
				Prompt:       step.Prompt,
				SystemPrompt: step.SystemPrompt,
				Schema:       step.Schema,
				Condition:    step.Condition.predicate(),
				Agent:        step.Agent,
				Timeout:      timeout,
				Tag:          step.Tag,
				Retry:        retry,
			}, pipeline.EmitOption(step.Emit))
		case "reduce":
			p = p.Reduce(step.Name, swarm.ReduceConfig{
				Prompt:       step.Prompt,
				SystemPrompt: step.SystemPrompt,
				Schema:       step.Schema,
				Agent:        step.Agent,
				Timeout:      timeout,
				Tag:          step.Tag,
				Retry:        retry,
				Verify:       step.Verify.compile(),
			})
		}
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *RetryFile) compile() *swarm.RetryConfig {
	if r == nil {
		return nil
	}
	backoff, _ := time.ParseDuration(r.Backoff)
	return &swarm.RetryConfig{
		MaxAttempts: r.MaxAttempts,
		Backoff:     backoff,
		Multiplier:  r.Multiplier,
	}
}

func (v *VerifyFile) compile() *swarm.VerifyConfig {
	if v == nil {
		return nil
	}
	return &swarm.VerifyConfig{
		Criteria:    v.Criteria,
		MaxAttempts: v.MaxAttempts,
		Agent:       v.Agent,
	}
}

func (b *BestOfFile) compile() *swarm.BestOfConfig {
	if b == nil {
		return nil
	}
	return &swarm.BestOfConfig{
		N:               b.N,
		JudgeCriteria:   b.JudgeCriteria,
		CandidateAgents: b.CandidateAgents,
		JudgeAgent:      b.JudgeAgent,
	}
}
