package swarm

import (
	"encoding/json"
	"fmt"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// Status classifies one item's outcome. Exactly one status applies per
// result; filtered only ever comes out of Filter.
type Status string

const (
	// StatusSuccess is a positive outcome.
	StatusSuccess Status = "success"

	// StatusFiltered is neutral: the item was evaluated and the filter
	// condition rejected it. Filter-only.
	StatusFiltered Status = "filtered"

	// StatusError is an executor or validation failure.
	StatusError Status = "error"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is one of the defined constants.
func (s Status) IsValid() bool {
	switch s {
	case StatusSuccess, StatusFiltered, StatusError:
		return true
	default:
		return false
	}
}

// Meta carries the identity and bookkeeping of one result.
type Meta struct {
	// OperationID correlates all results of one Swarm call.
	OperationID types.ID `json:"operation_id"`

	// Kind is the operation that produced the result.
	Kind OperationKind `json:"kind"`

	// Tag is the caller-supplied label for the operation, if any.
	Tag string `json:"tag,omitempty"`

	// ItemIndex is the item's position in its input batch (0..N-1).
	ItemIndex int `json:"item_index"`

	// Attempts is the number of whole-unit retry attempts consumed.
	Attempts int `json:"attempts,omitempty"`

	// CandidateIndex is set on bestOf candidate results.
	CandidateIndex int `json:"candidate_index,omitempty"`

	// InputCount and InputIndices are set on reduce results, recording
	// how many items were consumed and which ones.
	InputCount   int   `json:"input_count,omitempty"`
	InputIndices []int `json:"input_indices,omitempty"`

	// StepIndex and StepName link the result to a pipeline step.
	StepIndex int    `json:"step_index,omitempty"`
	StepName  string `json:"step_name,omitempty"`
}

// VerifyInfo records the outcome of a verification loop.
type VerifyInfo struct {
	// Passed is true only if the final verifier call reported pass.
	Passed bool `json:"passed"`

	// Attempts is the number of worker attempts, counting the first.
	Attempts int `json:"attempts"`

	// Reasoning is the verifier's judgment text (or an availability
	// explanation when the verifier call itself failed).
	Reasoning string `json:"reasoning"`

	// Agent identifies the verifier agent used.
	Agent executor.AgentRef `json:"agent,omitzero"`
}

// BestOfInfo annotates a winner result produced through a bestOf
// composition.
type BestOfInfo struct {
	// WinnerIndex is the judge-selected candidate index.
	WinnerIndex int `json:"winner_index"`

	// Reasoning is the judge's selection rationale.
	Reasoning string `json:"reasoning"`

	// Judge identifies the judge agent used.
	Judge executor.AgentRef `json:"judge,omitzero"`

	// Candidates holds every candidate result, including failed ones.
	Candidates []Result `json:"candidates"`
}

// Result is the externally visible outcome of one item in map, filter, or
// a bestOf candidate. Failures are carried in Status/Error; the engine
// never raises for ordinary worker, verifier, or judge failures.
type Result struct {
	Status Status `json:"status"`

	// Data is the parsed structured output, nil when absent or invalid.
	Data map[string]any `json:"data,omitempty"`

	// Files is the worker's output file set, except for filter results,
	// which always carry the original input files.
	Files types.FileMap `json:"-"`

	Meta Meta `json:"meta"`

	// Error is a human-readable failure description when Status is error.
	Error string `json:"error,omitempty"`

	// RawData retains the unparsed structured reply for debugging.
	RawData string `json:"raw_data,omitempty"`

	// BestOf is present when the result came from a bestOf composition.
	BestOf *BestOfInfo `json:"best_of,omitempty"`

	// Verify is present when a verification loop ran.
	Verify *VerifyInfo `json:"verify,omitempty"`
}

// Succeeded reports whether the result carries success status.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// ResultSet is the ordered result collection of one map or filter call.
// Results[i] corresponds to input item i regardless of completion order.
type ResultSet struct {
	Results []Result `json:"results"`
}

// Len returns the number of results in the set.
func (rs *ResultSet) Len() int {
	return len(rs.Results)
}

// Success returns the success-status results in input order.
func (rs *ResultSet) Success() []Result {
	return rs.withStatus(StatusSuccess)
}

// Filtered returns the filtered-status results in input order.
func (rs *ResultSet) Filtered() []Result {
	return rs.withStatus(StatusFiltered)
}

// Errors returns the error-status results in input order.
func (rs *ResultSet) Errors() []Result {
	return rs.withStatus(StatusError)
}

// Counts returns the number of results per status.
func (rs *ResultSet) Counts() (success, filtered, failed int) {
	for _, r := range rs.Results {
		switch r.Status {
		case StatusSuccess:
			success++
		case StatusFiltered:
			filtered++
		case StatusError:
			failed++
		}
	}
	return success, filtered, failed
}

func (rs *ResultSet) withStatus(status Status) []Result {
	var out []Result
	for _, r := range rs.Results {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// FilesOf extracts the file sets of the given results, preserving order.
// Useful for feeding one operation's output into the next.
func FilesOf(results []Result) []types.FileMap {
	out := make([]types.FileMap, len(results))
	for i, r := range results {
		out[i] = r.Files
	}
	return out
}

// BestOfResult is the output of a standalone BestOf call.
type BestOfResult struct {
	// Winner is the judge-selected candidate result.
	Winner Result `json:"winner"`

	// WinnerIndex is the winner's candidate index.
	WinnerIndex int `json:"winner_index"`

	// JudgeReasoning is the judge's selection rationale.
	JudgeReasoning string `json:"judge_reasoning"`

	// Judge identifies the judge agent used.
	Judge executor.AgentRef `json:"judge,omitzero"`

	// Candidates holds every candidate result.
	Candidates []Result `json:"candidates"`
}

// DecodeData decodes a result's structured data into T via a JSON
// round-trip. Returns an error when the result carries no data.
func DecodeData[T any](r Result) (T, error) {
	var out T
	if r.Data == nil {
		return out, fmt.Errorf("result has no structured data")
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return out, fmt.Errorf("re-encoding structured data: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decoding structured data: %w", err)
	}
	return out, nil
}
