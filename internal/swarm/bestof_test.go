package swarm

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

const judgePromptMarker = "Several workers independently attempted"

func isJudgeCall(input executor.WorkerInput) bool {
	return strings.HasPrefix(input.Prompt, judgePromptMarker)
}

func winnerOutcome(winner int, reasoning string) executor.WorkerOutcome {
	return dataOutcome(map[string]any{"winner": float64(winner), "reasoning": reasoning})
}

// bestOfHarness routes candidate and judge calls to separate scripts.
type bestOfHarness struct {
	mu             sync.Mutex
	candidateCalls int
	judgeCalls     int
	judgePrompts   []string
	judgeAgents    []executor.AgentRef

	candidate func(call int, input executor.WorkerInput) executor.WorkerOutcome
	judge     func(call int, input executor.WorkerInput) executor.WorkerOutcome
}

func (h *bestOfHarness) executor() executor.ExecutorFunc {
	return func(ctx context.Context, input executor.WorkerInput) executor.WorkerOutcome {
		h.mu.Lock()
		if isJudgeCall(input) {
			h.judgeCalls++
			call := h.judgeCalls
			h.judgePrompts = append(h.judgePrompts, input.Prompt)
			h.judgeAgents = append(h.judgeAgents, input.Agent)
			h.mu.Unlock()
			return h.judge(call, input)
		}
		h.candidateCalls++
		call := h.candidateCalls
		h.mu.Unlock()
		return h.candidate(call, input)
	}
}

func (h *bestOfHarness) counts() (candidates, judges int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.candidateCalls, h.judgeCalls
}

func TestBestOfSelectsWinner(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(call int, _ executor.WorkerInput) executor.WorkerOutcome {
			return textOutcome("candidate output")
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(2, "most thorough")
		},
	}

	sw := newTestSwarm(h.executor())
	result, err := sw.BestOf(context.Background(), types.FileMap{"in.txt": []byte("x")}, BestOfParams{
		Prompt: "solve the puzzle",
		BestOf: BestOfConfig{N: 3, JudgeCriteria: "prefer thoroughness"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.WinnerIndex)
	assert.Equal(t, "most thorough", result.JudgeReasoning)
	assert.Equal(t, StatusSuccess, result.Winner.Status)
	assert.Equal(t, KindBestOf, result.Winner.Meta.Kind)
	require.Len(t, result.Candidates, 3)
	for i, c := range result.Candidates {
		assert.Equal(t, KindBestOfCandidate, c.Meta.Kind)
		assert.Equal(t, i, c.Meta.CandidateIndex)
	}

	candidates, judges := h.counts()
	assert.Equal(t, 3, candidates)
	assert.Equal(t, 1, judges)
}

func TestJudgeWaitsForAllCandidates(t *testing.T) {
	var settled atomic.Int64
	h := &bestOfHarness{
		candidate: func(call int, _ executor.WorkerInput) executor.WorkerOutcome {
			if call == 1 {
				time.Sleep(50 * time.Millisecond)
			}
			settled.Add(1)
			return textOutcome("done")
		},
	}
	h.judge = func(int, executor.WorkerInput) executor.WorkerOutcome {
		assert.Equal(t, int64(3), settled.Load(), "judge started before every candidate settled")
		return winnerOutcome(0, "first")
	}

	sw := newTestSwarm(h.executor(), WithConcurrency(8))
	_, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 3, JudgeCriteria: "c"},
	})
	require.NoError(t, err)
}

func TestJudgePromptListsEveryCandidate(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(call int, _ executor.WorkerInput) executor.WorkerOutcome {
			if call == 2 {
				return failOutcome("candidate exploded")
			}
			return textOutcome("answer " + strings.Repeat("x", call))
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(0, "r")
		},
	}

	sw := newTestSwarm(h.executor())
	_, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 3, JudgeCriteria: "pick the best answer"},
	})
	require.NoError(t, err)

	require.Len(t, h.judgePrompts, 1)
	prompt := h.judgePrompts[0]
	assert.Equal(t, 3, strings.Count(prompt, "### Candidate "))
	assert.Contains(t, prompt, "### Candidate 0")
	assert.Contains(t, prompt, "### Candidate 2")
	assert.Contains(t, prompt, "pick the best answer")
	assert.Contains(t, prompt, "FAILED: candidate exploded",
		"errored candidates are presented to the judge marked as failed")
}

func TestBestOfPerCandidateAgents(t *testing.T) {
	agents := []executor.AgentRef{
		{Provider: "anthropic", Model: "model-a"},
		{Provider: "openai", Model: "model-b"},
	}
	judgeAgent := executor.AgentRef{Provider: "anthropic", Model: "the-judge"}

	var mu sync.Mutex
	seen := map[string]bool{}
	h := &bestOfHarness{
		candidate: func(_ int, input executor.WorkerInput) executor.WorkerOutcome {
			mu.Lock()
			seen[input.Agent.Model] = true
			mu.Unlock()
			return textOutcome("out")
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(1, "r")
		},
	}

	sw := newTestSwarm(h.executor())
	result, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{
			JudgeCriteria:   "c",
			CandidateAgents: agents,
			JudgeAgent:      judgeAgent,
		},
	})
	require.NoError(t, err)

	assert.True(t, seen["model-a"])
	assert.True(t, seen["model-b"])
	require.Len(t, h.judgeAgents, 1)
	assert.Equal(t, judgeAgent, h.judgeAgents[0])
	assert.Equal(t, judgeAgent, result.Judge)
	assert.Len(t, result.Candidates, 2, "candidate count inferred from agent list")
}

func TestJudgeFailureRetriesUnderDefaultPredicate(t *testing.T) {
	// The caller's RetryOn never retries anything, but judge failures are
	// governed by the default error-status predicate regardless.
	h := &bestOfHarness{
		candidate: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return textOutcome("out")
		},
		judge: func(call int, _ executor.WorkerInput) executor.WorkerOutcome {
			if call == 1 {
				return failOutcome("judge timed out")
			}
			return winnerOutcome(0, "r")
		},
	}

	sw := newTestSwarm(h.executor())
	result, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 2, JudgeCriteria: "c"},
		Retry: &RetryConfig{
			MaxAttempts: 2,
			Backoff:     1,
			Multiplier:  1,
			RetryOn:     func(Result) bool { return false },
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.WinnerIndex)
	candidates, judges := h.counts()
	assert.Equal(t, 2, judges)
	assert.Equal(t, 4, candidates, "retrying a judge failure re-runs the whole unit")
}

func TestJudgeWinnerOutOfRange(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return textOutcome("out")
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(7, "hallucinated an index")
		},
	}

	sw := newTestSwarm(h.executor())
	_, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 2, JudgeCriteria: "c"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.JUDGE_FAILED, ""))
	assert.Contains(t, err.Error(), "JUDGE_WINNER_OUT_OF_RANGE")
}

func TestJudgeMalformedDecisionFailsAfterRetries(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return textOutcome("out")
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return dataOutcome(map[string]any{"reasoning": "forgot the winner"})
		},
	}

	sw := newTestSwarm(h.executor())
	_, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 2, JudgeCriteria: "c"},
		Retry:  fastRetry(2),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.JUDGE_FAILED, ""))

	_, judges := h.counts()
	assert.Equal(t, 2, judges)
}

func TestMapWithBestOf(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(_ int, input executor.WorkerInput) executor.WorkerOutcome {
			return textOutcome("from " + string(input.Files["input.txt"]))
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(1, "second is better")
		},
	}

	var judgeEvents atomic.Int64
	sw := newTestSwarm(h.executor())
	set, err := sw.Map(context.Background(), itemBatch(2), MapConfig{
		Prompt: "p",
		BestOf: &BestOfConfig{N: 2, JudgeCriteria: "c"},
		Callbacks: Callbacks{
			OnJudgeComplete: func(itemIndex, winnerIndex int, reasoning string) {
				judgeEvents.Add(1)
				assert.Equal(t, 1, winnerIndex)
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2), judgeEvents.Load())
	for i, r := range set.Results {
		assert.Equal(t, StatusSuccess, r.Status)
		assert.Equal(t, KindMap, r.Meta.Kind, "the winner carries the map operation's metadata")
		assert.Equal(t, i, r.Meta.ItemIndex)
		require.NotNil(t, r.BestOf)
		assert.Equal(t, 1, r.BestOf.WinnerIndex)
		assert.Len(t, r.BestOf.Candidates, 2)
	}

	candidates, judges := h.counts()
	assert.Equal(t, 4, candidates)
	assert.Equal(t, 2, judges)
}

func TestBestOfCandidateCallbacks(t *testing.T) {
	h := &bestOfHarness{
		candidate: func(call int, _ executor.WorkerInput) executor.WorkerOutcome {
			if call == 1 {
				return failOutcome("one bad apple")
			}
			return textOutcome("fine")
		},
		judge: func(int, executor.WorkerInput) executor.WorkerOutcome {
			return winnerOutcome(0, "r")
		},
	}

	var mu sync.Mutex
	statuses := map[int]Status{}
	sw := newTestSwarm(h.executor())
	result, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 3, JudgeCriteria: "c"},
		Callbacks: Callbacks{
			OnCandidateComplete: func(itemIndex, candidateIndex int, r Result) {
				mu.Lock()
				statuses[candidateIndex] = r.Status
				mu.Unlock()
			},
		},
	})
	require.NoError(t, err)

	assert.Len(t, statuses, 3, "every candidate settles through the callback, failed ones included")
	failed := 0
	for _, c := range result.Candidates {
		if c.Status == StatusError {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestBestOfGateBoundsCandidates(t *testing.T) {
	const capacity = 2
	var current, peak atomic.Int64

	exec := executor.ExecutorFunc(func(ctx context.Context, input executor.WorkerInput) executor.WorkerOutcome {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		if isJudgeCall(input) {
			return winnerOutcome(0, "r")
		}
		return textOutcome("out")
	})

	sw := newTestSwarm(exec, WithConcurrency(capacity))
	_, err := sw.BestOf(context.Background(), types.FileMap{}, BestOfParams{
		Prompt: "p",
		BestOf: BestOfConfig{N: 5, JudgeCriteria: "c"},
	})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int64(capacity),
		"candidate fan-out respects the shared gate")
}
