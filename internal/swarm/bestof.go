package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// runBestOfUnit executes one bestOf composition: N candidate workers run
// concurrently under the shared gate, then a judge call selects a winner.
// The judge never starts until every candidate has settled; that barrier
// is a hard ordering guarantee, not a race.
//
// On success the winner's result is returned annotated with a BestOf
// block. Judge failures (call error, malformed decision, out-of-range
// winner) come back as error-status results tagged with the judge kind so
// the retry wrapper applies the default predicate to them.
func (s *Swarm) runBestOfUnit(
	ctx context.Context,
	itemIndex int,
	files types.FileMap,
	task taskSpec,
	cfg *BestOfConfig,
	cb Callbacks,
	meta Meta,
) Result {
	n := cfg.resolvedN()
	candidates := make([]Result, n)

	var wg sync.WaitGroup
	for c := 0; c < n; c++ {
		wg.Add(1)
		go func(candidate int) {
			defer wg.Done()
			candidateTask := task
			candidateTask.agent = cfg.agentFor(candidate, task.agent)
			candidateMeta := Meta{
				OperationID:    meta.OperationID,
				Kind:           KindBestOfCandidate,
				Tag:            meta.Tag,
				ItemIndex:      itemIndex,
				CandidateIndex: candidate,
			}
			candidates[candidate] = s.runUnit(ctx, files, candidateTask, candidateMeta)
			cb.candidateComplete(itemIndex, candidate, candidates[candidate])
		}(c)
	}
	wg.Wait()

	// Judge failures surface as error results tagged with the judge kind;
	// the retry wrapper around the whole unit re-runs them under the
	// default error-status predicate regardless of the caller's RetryOn.
	judgeMeta := Meta{
		OperationID: meta.OperationID,
		Kind:        KindBestOfJudge,
		Tag:         meta.Tag,
		ItemIndex:   itemIndex,
	}
	decision := s.runJudge(ctx, task, cfg, candidates, judgeMeta)
	if decision.Status == StatusError {
		return decision
	}

	winnerIndex := decision.BestOf.WinnerIndex
	reasoning := decision.BestOf.Reasoning
	cb.judgeComplete(itemIndex, winnerIndex, reasoning)

	winner := candidates[winnerIndex]
	winner.Meta = meta
	winner.Meta.ItemIndex = itemIndex
	winner.BestOf = &BestOfInfo{
		WinnerIndex: winnerIndex,
		Reasoning:   reasoning,
		Judge:       cfg.JudgeAgent,
		Candidates:  candidates,
	}
	return winner
}

// runJudge executes one judge call over the settled candidates and parses
// its decision. All candidates are presented, errored ones marked failed,
// so the judge can deprioritize them.
func (s *Swarm) runJudge(
	ctx context.Context,
	task taskSpec,
	cfg *BestOfConfig,
	candidates []Result,
	meta Meta,
) Result {
	input := executor.WorkerInput{
		Prompt:  judgePrompt(task.prompt, cfg.JudgeCriteria, candidates),
		Schema:  judgeSchema(),
		Agent:   cfg.JudgeAgent,
		Timeout: task.timeout,
	}

	out := s.runWorker(ctx, input)
	if !out.Succeeded() || out.Data == nil {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "judge returned no structured decision"
		}
		return Result{
			Status: StatusError,
			Meta:   meta,
			Error:  types.NewError(types.JUDGE_FAILED, errMsg).Error(),
		}
	}

	winnerIndex, ok := decodeWinner(out.Data["winner"])
	if !ok {
		return Result{
			Status:  StatusError,
			Meta:    meta,
			RawData: out.RawOutput,
			Error:   types.NewError(types.JUDGE_FAILED, "judge decision missing integer winner field").Error(),
		}
	}
	if winnerIndex < 0 || winnerIndex >= len(candidates) {
		return Result{
			Status:  StatusError,
			Meta:    meta,
			RawData: out.RawOutput,
			Error: types.NewError(types.JUDGE_WINNER_OUT_OF_RANGE,
				fmt.Sprintf("judge selected candidate %d of %d", winnerIndex, len(candidates))).Error(),
		}
	}

	reasoning, _ := out.Data["reasoning"].(string)
	return Result{
		Status: StatusSuccess,
		Meta:   meta,
		BestOf: &BestOfInfo{WinnerIndex: winnerIndex, Reasoning: reasoning},
	}
}

// decodeWinner accepts the numeric encodings JSON unmarshaling produces.
func decodeWinner(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
