// Package swarm implements the execution engine that coordinates many
// independent worker executions into higher-level functional operations:
// Map (transform each), Filter (evaluate and gate), Reduce (synthesize
// many into one), and BestOf (generate N, judge a winner).
//
// All operations issued through one Swarm share a single concurrency gate,
// so nested compositions never exceed the configured global bound. Retry
// wraps the whole unit of work: the verify loop or the bestOf composition
// when configured, the bare worker call otherwise. Per-item failures are
// encoded in result status, never raised; errors are reserved for
// call-level misconfiguration.
package swarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/retry"
	"github.com/evolving-machines-lab/evolve-sub003/internal/semaphore"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// Swarm coordinates worker executions. One instance owns one concurrency
// gate; all operations issued through it share that bound.
type Swarm struct {
	executor executor.WorkerExecutor
	gate     *semaphore.Semaphore
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option is a functional option for configuring a Swarm.
type Option func(*Swarm)

// WithConcurrency sets the global worker-execution ceiling shared by all
// operations on this Swarm. Default 4.
func WithConcurrency(n int) Option {
	return func(s *Swarm) {
		s.gate = semaphore.New(n)
	}
}

// WithLogger configures the swarm to use the specified structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Swarm) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer configures the swarm to emit OpenTelemetry spans around
// operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Swarm) {
		s.tracer = tracer
	}
}

// New creates a Swarm over the given worker executor.
// Default configuration:
//   - concurrency: 4
//   - logger: slog.Default()
//   - no tracer
func New(exec executor.WorkerExecutor, opts ...Option) *Swarm {
	s := &Swarm{
		executor: exec,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gate == nil {
		s.gate = semaphore.New(semaphore.DefaultCapacity)
	}
	return s
}

// Gate exposes the shared concurrency gate. Intended for instrumentation.
func (s *Swarm) Gate() *semaphore.Semaphore {
	return s.gate
}

// Map runs the worker once per item and collects results in input order.
// The returned set has exactly len(items) entries; Results[i].Meta.ItemIndex
// is i regardless of completion order.
func (s *Swarm) Map(ctx context.Context, items []types.FileMap, cfg MapConfig) (*ResultSet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opID := types.NewID()
	ctx, span := s.startSpan(ctx, "swarm.map", opID, len(items))
	defer endSpan(span)

	s.logger.InfoContext(ctx, "starting map operation",
		"operation_id", opID,
		"tag", cfg.Tag,
		"items", len(items),
	)
	started := time.Now()

	results := make([]Result, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int, files types.FileMap) {
			defer wg.Done()
			results[idx] = s.runMapItem(ctx, opID, idx, files, cfg)
		}(i, items[i])
	}
	wg.Wait()

	set := &ResultSet{Results: results}
	success, _, failed := set.Counts()
	s.logger.InfoContext(ctx, "map operation complete",
		"operation_id", opID,
		"success", success,
		"error", failed,
		"duration", time.Since(started),
	)
	return set, nil
}

// runMapItem executes one map item's whole unit, wrapped in retry.
// The unit is the verify- or bestOf-wrapped worker execution.
func (s *Swarm) runMapItem(ctx context.Context, opID types.ID, idx int, files types.FileMap, cfg MapConfig) Result {
	meta := Meta{OperationID: opID, Kind: KindMap, Tag: cfg.Tag, ItemIndex: idx}

	attempts := 0
	unit := func(attempt int) Result {
		attempts = attempt
		switch {
		case cfg.Verify != nil:
			return s.runVerified(ctx, idx, files, cfg.task(), cfg.Verify, cfg.Callbacks, meta)
		case cfg.BestOf != nil:
			return s.runBestOfUnit(ctx, idx, files, cfg.task(), cfg.BestOf, cfg.Callbacks, meta)
		default:
			return s.runUnit(ctx, files, cfg.task(), meta)
		}
	}

	policy := cfg.Retry.policy(idx, cfg.Callbacks)
	if cfg.BestOf != nil {
		policy = judgeAwarePolicy(policy)
	}
	result := retry.Do(ctx, policy, idx, unit)
	result.Meta.Attempts = attempts
	return result
}

// Filter runs an evaluator worker per item and applies the condition
// locally. Result files are always the original input files: filter is a
// pure gate and never surfaces evaluator output content.
func (s *Swarm) Filter(ctx context.Context, items []types.FileMap, cfg FilterConfig) (*ResultSet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opID := types.NewID()
	ctx, span := s.startSpan(ctx, "swarm.filter", opID, len(items))
	defer endSpan(span)

	s.logger.InfoContext(ctx, "starting filter operation",
		"operation_id", opID,
		"tag", cfg.Tag,
		"items", len(items),
	)
	started := time.Now()

	results := make([]Result, len(items))
	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(idx int, files types.FileMap) {
			defer wg.Done()
			results[idx] = s.runFilterItem(ctx, opID, idx, files, cfg)
		}(i, items[i])
	}
	wg.Wait()

	set := &ResultSet{Results: results}
	success, filtered, failed := set.Counts()
	s.logger.InfoContext(ctx, "filter operation complete",
		"operation_id", opID,
		"success", success,
		"filtered", filtered,
		"error", failed,
		"duration", time.Since(started),
	)
	return set, nil
}

func (s *Swarm) runFilterItem(ctx context.Context, opID types.ID, idx int, files types.FileMap, cfg FilterConfig) Result {
	meta := Meta{OperationID: opID, Kind: KindFilter, Tag: cfg.Tag, ItemIndex: idx}

	attempts := 0
	unit := func(attempt int) Result {
		attempts = attempt
		result := s.runUnit(ctx, files, cfg.task(), meta)
		// The gate never surfaces evaluator output content.
		result.Files = files
		if result.Status != StatusSuccess {
			return result
		}
		if result.Data == nil {
			result.Status = StatusError
			result.Error = types.NewError(types.VALIDATION_FAILED, "evaluator returned no structured data").Error()
			return result
		}
		return applyCondition(result, cfg.Condition)
	}

	result := retry.Do(ctx, cfg.Retry.policy(idx, cfg.Callbacks), idx, unit)
	result.Meta.Attempts = attempts
	return result
}

// applyCondition classifies a well-formed evaluation as success or
// filtered. A panicking condition is reported as an item error rather
// than aborting the batch.
func applyCondition(result Result, condition func(map[string]any) bool) (out Result) {
	out = result
	defer func() {
		if r := recover(); r != nil {
			out.Status = StatusError
			out.Error = types.NewError(types.VALIDATION_FAILED,
				fmt.Sprintf("filter condition panicked: %v", r)).Error()
		}
	}()
	if !condition(result.Data) {
		out.Status = StatusFiltered
	}
	return out
}

// Reduce lays all items out as indexed sub-contexts (item_0/, item_1/, ...)
// and runs a single synthesis worker over them. Reduce results are binary:
// success or error, never filtered.
func (s *Swarm) Reduce(ctx context.Context, items []types.FileMap, cfg ReduceConfig) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, types.NewError(types.CONFIG_INVALID, "reduce requires at least one item")
	}

	opID := types.NewID()
	ctx, span := s.startSpan(ctx, "swarm.reduce", opID, len(items))
	defer endSpan(span)

	s.logger.InfoContext(ctx, "starting reduce operation",
		"operation_id", opID,
		"tag", cfg.Tag,
		"items", len(items),
	)
	started := time.Now()

	combined := types.NewFileMap()
	indices := make([]int, len(items))
	for i, files := range items {
		indices[i] = i
		combined = combined.Merge(files.WithPrefix(fmt.Sprintf("item_%d", i)))
	}

	meta := Meta{
		OperationID:  opID,
		Kind:         KindReduce,
		Tag:          cfg.Tag,
		InputCount:   len(items),
		InputIndices: indices,
	}

	attempts := 0
	unit := func(attempt int) Result {
		attempts = attempt
		if cfg.Verify != nil {
			return s.runVerified(ctx, 0, combined, cfg.task(), cfg.Verify, cfg.Callbacks, meta)
		}
		return s.runUnit(ctx, combined, cfg.task(), meta)
	}

	result := retry.Do(ctx, cfg.Retry.policy(0, cfg.Callbacks), 0, unit)
	result.Meta.Attempts = attempts

	s.logger.InfoContext(ctx, "reduce operation complete",
		"operation_id", opID,
		"status", result.Status,
		"duration", time.Since(started),
	)
	return &result, nil
}

// BestOf runs N candidates over one input and a judge call that selects a
// winner. Candidate and judge executions all pass through the shared gate.
// A judge failure that survives the retry wrapper is returned as a Go
// error, since a BestOfResult has no meaningful shape without a winner.
func (s *Swarm) BestOf(ctx context.Context, files types.FileMap, cfg BestOfParams) (*BestOfResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opID := types.NewID()
	ctx, span := s.startSpan(ctx, "swarm.best_of", opID, cfg.BestOf.resolvedN())
	defer endSpan(span)

	s.logger.InfoContext(ctx, "starting bestOf operation",
		"operation_id", opID,
		"tag", cfg.Tag,
		"candidates", cfg.BestOf.resolvedN(),
	)

	meta := Meta{OperationID: opID, Kind: KindBestOf, Tag: cfg.Tag}

	attempts := 0
	unit := func(attempt int) Result {
		attempts = attempt
		return s.runBestOfUnit(ctx, 0, files, cfg.task(), &cfg.BestOf, cfg.Callbacks, meta)
	}

	result := retry.Do(ctx, judgeAwarePolicy(cfg.Retry.policy(0, cfg.Callbacks)), 0, unit)
	result.Meta.Attempts = attempts

	if result.BestOf == nil {
		return nil, types.NewError(types.JUDGE_FAILED, result.Error)
	}
	return &BestOfResult{
		Winner:         result,
		WinnerIndex:    result.BestOf.WinnerIndex,
		JudgeReasoning: result.BestOf.Reasoning,
		Judge:          result.BestOf.Judge,
		Candidates:     result.BestOf.Candidates,
	}, nil
}

// runUnit executes one worker call under the shared gate and classifies
// the outcome.
func (s *Swarm) runUnit(ctx context.Context, files types.FileMap, task taskSpec, meta Meta) Result {
	out := s.runWorker(ctx, task.input(files))
	return resultFrom(out, meta)
}

// runWorker executes one call against the worker executor while holding a
// gate permit. Gate wait aborts (ctx cancellation) are encoded as error
// outcomes, consistent with the result-typed failure policy.
func (s *Swarm) runWorker(ctx context.Context, input executor.WorkerInput) executor.WorkerOutcome {
	var out executor.WorkerOutcome
	err := s.gate.Use(ctx, func() error {
		out = s.executor.Execute(ctx, input)
		return nil
	})
	if err != nil {
		return executor.ErrorOutcome(types.WrapError(types.EXECUTOR_FAILED, "concurrency gate wait aborted", err))
	}
	return out
}

// resultFrom classifies a worker outcome into a Result.
func resultFrom(out executor.WorkerOutcome, meta Meta) Result {
	result := Result{
		Meta:    meta,
		Data:    out.Data,
		Files:   out.Files,
		RawData: out.RawOutput,
		Error:   out.Error,
	}
	if out.Succeeded() {
		result.Status = StatusSuccess
	} else {
		result.Status = StatusError
		if result.Error == "" {
			result.Error = types.NewError(types.EXECUTOR_FAILED, "worker execution failed").Error()
		}
	}
	return result
}

// judgeAwarePolicy forces the default error-status predicate for judge
// failures: judge output shape is fixed, so a caller's custom RetryOn
// never applies to them.
func judgeAwarePolicy(p retry.Policy[Result]) retry.Policy[Result] {
	custom := p.RetryOn
	p.RetryOn = func(r Result) bool {
		if r.Meta.Kind == KindBestOfJudge {
			return r.Status == StatusError
		}
		if custom == nil {
			return r.Status == StatusError
		}
		return custom(r)
	}
	return p
}

func (s *Swarm) startSpan(ctx context.Context, name string, opID types.ID, items int) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, nil
	}
	return s.tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("swarm.operation_id", opID.String()),
			attribute.Int("swarm.items", items),
		),
	)
}

func endSpan(span trace.Span) {
	if span != nil {
		span.End()
	}
}
