// Package executor defines the worker execution boundary consumed by the
// swarm engine, plus a reference implementation backed by LLM completions.
//
// A worker is one remote task execution: it receives a file set and a
// prompt, and produces output files and optionally structured data. The
// engine never deals in Go errors at this boundary; failures are encoded
// in the outcome status so partial batch failure never aborts other items.
package executor

import (
	"context"
	"time"

	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// OutcomeStatus is the terminal status of one worker execution.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeError   OutcomeStatus = "error"
)

// String returns the string representation of the OutcomeStatus.
func (s OutcomeStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the defined constants.
func (s OutcomeStatus) IsValid() bool {
	switch s {
	case OutcomeSuccess, OutcomeError:
		return true
	default:
		return false
	}
}

// AgentRef identifies which agent configuration a worker execution should
// use. The zero value means the executor's default agent.
type AgentRef struct {
	Provider    string  `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// IsZero reports whether the ref carries no override.
func (a AgentRef) IsZero() bool {
	return a.Provider == "" && a.Model == "" && a.Temperature == 0
}

// WorkerInput is everything one worker execution receives.
type WorkerInput struct {
	// Files is the input file set, keyed by relative path.
	Files types.FileMap

	// Prompt is the task instruction for the worker.
	Prompt string

	// SystemPrompt optionally overrides the worker's system instruction.
	SystemPrompt string

	// Schema, when set, requires the worker to emit structured output
	// conforming to it. The executor validates and parses the reply.
	Schema *types.JSONSchema

	// Agent optionally overrides the agent used for this execution.
	Agent AgentRef

	// Timeout bounds the execution. Zero means the executor's default.
	Timeout time.Duration
}

// WorkerOutcome is the result of one worker execution. Error conditions
// are carried in Status/Error rather than a Go error.
type WorkerOutcome struct {
	// Status is success or error.
	Status OutcomeStatus

	// Files is the worker's output file set.
	Files types.FileMap

	// RawOutput is the worker's unparsed structured reply, retained for
	// debugging when validation fails.
	RawOutput string

	// Data is the parsed structured output, nil when absent or invalid.
	Data map[string]any

	// Error is a human-readable failure description when Status is error.
	Error string
}

// Succeeded reports whether the outcome carries a successful status.
func (o WorkerOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// ErrorOutcome builds an error-status outcome from a SwarmError.
func ErrorOutcome(err *types.SwarmError) WorkerOutcome {
	return WorkerOutcome{
		Status: OutcomeError,
		Error:  err.Error(),
	}
}

// WorkerExecutor is the capability the swarm engine requires: run this
// task, return files plus optional structured data and error status.
// Implementations must honor ctx cancellation and must not panic.
type WorkerExecutor interface {
	Execute(ctx context.Context, input WorkerInput) WorkerOutcome
}

// ExecutorFunc adapts a function to the WorkerExecutor interface.
type ExecutorFunc func(ctx context.Context, input WorkerInput) WorkerOutcome

// Execute implements WorkerExecutor.
func (f ExecutorFunc) Execute(ctx context.Context, input WorkerInput) WorkerOutcome {
	return f(ctx, input)
}
