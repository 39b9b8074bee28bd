// Package pipeline chains swarm operations into multi-stage workflows.
//
// A Pipeline is an immutable value: each chaining call returns a new
// Pipeline with one appended step, so a built pipeline can be reused
// safely across multiple Run calls with different item batches. Steps
// execute strictly sequentially; a step starts only after the previous
// step's entire item set has settled. Configuration problems accumulate
// during building and fail Run fast, before any worker dispatch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/evolving-machines-lab/evolve-sub003/internal/swarm"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// StepKind identifies a pipeline step's operation.
type StepKind string

const (
	StepMap    StepKind = "map"
	StepFilter StepKind = "filter"
	StepReduce StepKind = "reduce"
)

// String returns the string representation of the StepKind.
func (k StepKind) String() string {
	return string(k)
}

// EmitOption selects which classification of a filter step's results
// advances to the next step.
type EmitOption string

const (
	// EmitSuccess advances only results the condition accepted. Default.
	EmitSuccess EmitOption = "success"

	// EmitFiltered advances only results the condition rejected.
	EmitFiltered EmitOption = "filtered"

	// EmitAll advances accepted results followed by rejected ones.
	EmitAll EmitOption = "all"
)

// IsValid checks if the emit option is one of the defined constants.
func (e EmitOption) IsValid() bool {
	switch e {
	case EmitSuccess, EmitFiltered, EmitAll:
		return true
	default:
		return false
	}
}

// Step is one map, filter, or reduce stage. Exactly one config is set,
// matching Kind.
type Step struct {
	Name   string
	Kind   StepKind
	Map    *swarm.MapConfig
	Filter *swarm.FilterConfig
	Reduce *swarm.ReduceConfig
	Emit   EmitOption
}

// Pipeline is an immutable chain of steps bound to one Swarm.
type Pipeline struct {
	sw     *swarm.Swarm
	steps  []Step
	errs   []error
	done   bool // a reduce step makes the chain terminal
	logger *slog.Logger
	tracer trace.Tracer
	sink   EventSink
}

// PipelineOption is a functional option for configuring a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger configures the pipeline to use the specified structured logger.
func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTracer configures the pipeline to emit OpenTelemetry spans around runs.
func WithTracer(tracer trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithEventSink configures where lifecycle events and re-emitted
// operation callbacks are delivered.
func WithEventSink(sink EventSink) PipelineOption {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// New creates an empty Pipeline bound to the given Swarm.
func New(sw *swarm.Swarm, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		sw:     sw,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// clone copies the pipeline so chaining never mutates shared state.
func (p *Pipeline) clone() *Pipeline {
	out := *p
	out.steps = append([]Step(nil), p.steps...)
	out.errs = append([]error(nil), p.errs...)
	return &out
}

// append adds a step, accumulating an error instead when the chain is
// already terminal.
func (p *Pipeline) append(step Step) *Pipeline {
	out := p.clone()
	if p.done {
		out.errs = append(out.errs, types.NewError(types.PIPELINE_TERMINAL,
			fmt.Sprintf("cannot chain %s step %q after a reduce step", step.Kind, step.Name)))
		return out
	}
	out.steps = append(out.steps, step)
	if step.Kind == StepReduce {
		out.done = true
	}
	return out
}

// Map returns a new Pipeline with an appended map step.
func (p *Pipeline) Map(name string, cfg swarm.MapConfig) *Pipeline {
	return p.append(Step{Name: name, Kind: StepMap, Map: &cfg})
}

// Filter returns a new Pipeline with an appended filter step. The emit
// option selects what advances to the next step; empty means success.
func (p *Pipeline) Filter(name string, cfg swarm.FilterConfig, emit EmitOption) *Pipeline {
	out := p.append(Step{Name: name, Kind: StepFilter, Filter: &cfg, Emit: emit})
	if emit != "" && !emit.IsValid() {
		out.errs = append(out.errs, types.NewError(types.CONFIG_INVALID,
			fmt.Sprintf("invalid emit option %q on filter step %q", emit, name)))
	}
	return out
}

// Reduce returns a new Pipeline with an appended reduce step. The chain
// is terminal afterwards: further Map/Filter/Reduce calls accumulate a
// PIPELINE_TERMINAL error that Run reports before any worker dispatch.
func (p *Pipeline) Reduce(name string, cfg swarm.ReduceConfig) *Pipeline {
	return p.append(Step{Name: name, Kind: StepReduce, Reduce: &cfg})
}

// Err returns the accumulated building errors, if any.
func (p *Pipeline) Err() error {
	return errors.Join(p.errs...)
}

// Len returns the number of steps in the chain.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// StepSummary records one executed step's outcome.
type StepSummary struct {
	Name     string        `json:"name"`
	Kind     StepKind      `json:"kind"`
	Counts   StatusCounts  `json:"counts"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	// PipelineID correlates all results and events of this run.
	PipelineID types.ID `json:"pipeline_id"`

	// Steps summarizes each executed step in order.
	Steps []StepSummary `json:"steps"`

	// Output holds the final step's advancing results. Empty when the
	// final step was a reduce.
	Output []swarm.Result `json:"output,omitempty"`

	// Reduced is set when the final step was a reduce.
	Reduced *swarm.Result `json:"reduced,omitempty"`

	// Duration is the whole run's wall-clock time.
	Duration time.Duration `json:"duration"`
}

// Run executes the steps strictly sequentially over the given items.
// Step i+1 starts only after step i has settled for all items. Building
// errors fail here, before any swarm call.
func (p *Pipeline) Run(ctx context.Context, items []types.FileMap) (*RunResult, error) {
	if err := p.Err(); err != nil {
		return nil, err
	}

	runID := types.NewID()
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "pipeline.run",
			trace.WithAttributes(
				attribute.String("pipeline.run_id", runID.String()),
				attribute.Int("pipeline.steps", len(p.steps)),
				attribute.Int("pipeline.items", len(items)),
			),
		)
		defer span.End()
	}

	p.logger.InfoContext(ctx, "starting pipeline run",
		"run_id", runID,
		"steps", len(p.steps),
		"items", len(items),
	)
	started := time.Now()

	result := &RunResult{PipelineID: runID}
	current := items

	for i, step := range p.steps {
		notify(ctx, p.sink, Event{
			Kind:      EventStepStart,
			StepIndex: i,
			StepName:  step.Name,
			StepKind:  step.Kind,
		})
		stepStarted := time.Now()

		advancing, counts, reduced, err := p.runStep(ctx, i, step, current)
		if err != nil {
			notify(ctx, p.sink, Event{
				Kind:      EventStepError,
				StepIndex: i,
				StepName:  step.Name,
				StepKind:  step.Kind,
				Duration:  time.Since(stepStarted),
				Err:       err.Error(),
			})
			p.logger.ErrorContext(ctx, "pipeline step failed",
				"run_id", runID,
				"step", step.Name,
				"error", err,
			)
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name, err)
		}

		stepDuration := time.Since(stepStarted)
		notify(ctx, p.sink, Event{
			Kind:      EventStepComplete,
			StepIndex: i,
			StepName:  step.Name,
			StepKind:  step.Kind,
			Counts:    counts,
			Duration:  stepDuration,
		})
		result.Steps = append(result.Steps, StepSummary{
			Name:     step.Name,
			Kind:     step.Kind,
			Counts:   counts,
			Duration: stepDuration,
		})

		if step.Kind == StepReduce {
			result.Reduced = reduced
			result.Output = nil
			break
		}
		result.Output = advancing
		current = swarm.FilesOf(advancing)
	}

	result.Duration = time.Since(started)
	p.logger.InfoContext(ctx, "pipeline run complete",
		"run_id", runID,
		"duration", result.Duration,
	)
	return result, nil
}

// runStep dispatches one step to the bound swarm and selects what
// advances to the next step.
func (p *Pipeline) runStep(
	ctx context.Context,
	index int,
	step Step,
	items []types.FileMap,
) (advancing []swarm.Result, counts StatusCounts, reduced *swarm.Result, err error) {
	switch step.Kind {
	case StepMap:
		cfg := *step.Map
		cfg.Callbacks = p.stepCallbacks(ctx, index, step, cfg.Callbacks)
		set, mapErr := p.sw.Map(ctx, items, cfg)
		if mapErr != nil {
			return nil, counts, nil, mapErr
		}
		p.annotate(set.Results, index, step.Name)
		counts = countSet(set)
		return set.Success(), counts, nil, nil

	case StepFilter:
		cfg := *step.Filter
		cfg.Callbacks = p.stepCallbacks(ctx, index, step, cfg.Callbacks)
		set, filterErr := p.sw.Filter(ctx, items, cfg)
		if filterErr != nil {
			return nil, counts, nil, filterErr
		}
		p.annotate(set.Results, index, step.Name)
		counts = countSet(set)
		return selectEmitted(set, step.Emit), counts, nil, nil

	case StepReduce:
		cfg := *step.Reduce
		cfg.Callbacks = p.stepCallbacks(ctx, index, step, cfg.Callbacks)
		r, reduceErr := p.sw.Reduce(ctx, items, cfg)
		if reduceErr != nil {
			return nil, counts, nil, reduceErr
		}
		r.Meta.StepIndex = index
		r.Meta.StepName = step.Name
		if r.Succeeded() {
			counts.Success = 1
		} else {
			counts.Errors = 1
		}
		return nil, counts, r, nil

	default:
		return nil, counts, nil, types.NewError(types.CONFIG_INVALID,
			fmt.Sprintf("unknown step kind %q", step.Kind))
	}
}

func (p *Pipeline) annotate(results []swarm.Result, index int, name string) {
	for i := range results {
		results[i].Meta.StepIndex = index
		results[i].Meta.StepName = name
	}
}

// selectEmitted applies a filter step's emit option.
func selectEmitted(set *swarm.ResultSet, emit EmitOption) []swarm.Result {
	switch emit {
	case EmitFiltered:
		return set.Filtered()
	case EmitAll:
		return append(set.Success(), set.Filtered()...)
	default:
		return set.Success()
	}
}

func countSet(set *swarm.ResultSet) StatusCounts {
	success, filtered, failed := set.Counts()
	return StatusCounts{Success: success, Filtered: filtered, Errors: failed}
}

// stepCallbacks layers pipeline-level re-emission onto an operation's
// callbacks: the caller's own callbacks still fire, and every event is
// also delivered to the sink annotated with the step identity.
func (p *Pipeline) stepCallbacks(ctx context.Context, index int, step Step, base swarm.Callbacks) swarm.Callbacks {
	if p.sink == nil {
		return base
	}
	return swarm.Callbacks{
		OnItemRetry: func(itemIndex, attempt int, errMsg string) {
			if base.OnItemRetry != nil {
				base.OnItemRetry(itemIndex, attempt, errMsg)
			}
			notify(ctx, p.sink, Event{
				Kind: EventItemRetry, StepIndex: index, StepName: step.Name, StepKind: step.Kind,
				ItemIndex: itemIndex, Attempt: attempt, Err: errMsg,
			})
		},
		OnWorkerComplete: func(itemIndex, attempt int, result swarm.Result) {
			if base.OnWorkerComplete != nil {
				base.OnWorkerComplete(itemIndex, attempt, result)
			}
			notify(ctx, p.sink, Event{
				Kind: EventWorkerComplete, StepIndex: index, StepName: step.Name, StepKind: step.Kind,
				ItemIndex: itemIndex, Attempt: attempt,
			})
		},
		OnVerifierComplete: func(itemIndex, attempt int, passed bool, reasoning string) {
			if base.OnVerifierComplete != nil {
				base.OnVerifierComplete(itemIndex, attempt, passed, reasoning)
			}
			notify(ctx, p.sink, Event{
				Kind: EventVerifierComplete, StepIndex: index, StepName: step.Name, StepKind: step.Kind,
				ItemIndex: itemIndex, Attempt: attempt, Passed: passed, Reasoning: reasoning,
			})
		},
		OnCandidateComplete: func(itemIndex, candidateIndex int, result swarm.Result) {
			if base.OnCandidateComplete != nil {
				base.OnCandidateComplete(itemIndex, candidateIndex, result)
			}
			notify(ctx, p.sink, Event{
				Kind: EventCandidateComplete, StepIndex: index, StepName: step.Name, StepKind: step.Kind,
				ItemIndex: itemIndex, CandidateIndex: candidateIndex,
			})
		},
		OnJudgeComplete: func(itemIndex, winnerIndex int, reasoning string) {
			if base.OnJudgeComplete != nil {
				base.OnJudgeComplete(itemIndex, winnerIndex, reasoning)
			}
			notify(ctx, p.sink, Event{
				Kind: EventJudgeComplete, StepIndex: index, StepName: step.Name, StepKind: step.Kind,
				ItemIndex: itemIndex, WinnerIndex: winnerIndex, Reasoning: reasoning,
			})
		},
	}
}
