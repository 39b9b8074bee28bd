package pipeline

import (
	"context"
	"time"
)

// EventKind identifies a pipeline lifecycle or re-emitted operation event.
type EventKind string

const (
	// Step lifecycle events.
	EventStepStart    EventKind = "step_start"
	EventStepComplete EventKind = "step_complete"
	EventStepError    EventKind = "step_error"

	// Operation callbacks re-emitted at the pipeline level.
	EventItemRetry         EventKind = "item_retry"
	EventWorkerComplete    EventKind = "worker_complete"
	EventVerifierComplete  EventKind = "verifier_complete"
	EventCandidateComplete EventKind = "candidate_complete"
	EventJudgeComplete     EventKind = "judge_complete"
)

// StatusCounts summarizes one step's results per status.
type StatusCounts struct {
	Success  int `json:"success"`
	Filtered int `json:"filtered"`
	Errors   int `json:"errors"`
}

// Event is one pipeline observation. Step identity is always set; the
// remaining fields are populated per kind.
type Event struct {
	Kind      EventKind     `json:"kind"`
	StepIndex int           `json:"step_index"`
	StepName  string        `json:"step_name"`
	StepKind  StepKind      `json:"step_kind"`
	Counts    StatusCounts  `json:"counts,omitzero"`
	Duration  time.Duration `json:"duration,omitempty"`
	Err       string        `json:"error,omitempty"`

	// Operation callback payloads.
	ItemIndex      int    `json:"item_index,omitempty"`
	Attempt        int    `json:"attempt,omitempty"`
	CandidateIndex int    `json:"candidate_index,omitempty"`
	WinnerIndex    int    `json:"winner_index,omitempty"`
	Passed         bool   `json:"passed,omitempty"`
	Reasoning      string `json:"reasoning,omitempty"`
}

// EventSink receives pipeline events. Implementations must tolerate
// concurrent calls; a panicking sink is caught and ignored so it can
// never corrupt pipeline control flow.
type EventSink interface {
	OnEvent(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event Event)

// OnEvent implements EventSink.
func (f EventSinkFunc) OnEvent(ctx context.Context, event Event) {
	f(ctx, event)
}

// notify delivers an event to the sink, shielded from sink panics.
// A nil sink is a no-op.
func notify(ctx context.Context, sink EventSink, event Event) {
	if sink == nil {
		return
	}
	defer func() { _ = recover() }()
	sink.OnEvent(ctx, event)
}
