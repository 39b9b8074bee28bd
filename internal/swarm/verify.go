package swarm

import (
	"context"
	"fmt"

	"github.com/evolving-machines-lab/evolve-sub003/internal/executor"
	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// candidateOutputPrefix is where a worker's output files are mounted in
// the verifier's input file set, alongside the original task files.
const candidateOutputPrefix = "candidate_output"

// verdict is a parsed verifier judgment.
type verdict struct {
	pass        bool
	reasoning   string
	feedback    string
	unavailable bool
	err         string
}

// runVerified executes the verification loop for one item: run the worker,
// judge its output against the criteria, and re-run the worker with the
// verifier's feedback appended to the prompt until it passes or attempts
// are exhausted.
//
// A verifier call that itself fails is treated as an availability failure,
// not a content failure: the last worker result passes through with
// verify.passed=false and an explanatory reasoning, and the verifier is
// not retried. This deliberately conflates "content rejected" with
// "verifier unreachable" for compatibility with the original protocol.
func (s *Swarm) runVerified(
	ctx context.Context,
	itemIndex int,
	files types.FileMap,
	task taskSpec,
	vcfg *VerifyConfig,
	cb Callbacks,
	meta Meta,
) Result {
	max := vcfg.maxAttempts()
	prompt := task.prompt

	var result Result
	var lastReasoning string
	for attempt := 1; attempt <= max; attempt++ {
		attemptTask := task
		attemptTask.prompt = prompt

		result = s.runUnit(ctx, files, attemptTask, meta)
		cb.workerComplete(itemIndex, attempt, result)

		// Verification only gates successful outputs.
		if !result.Succeeded() {
			if attempt > 1 {
				result.Verify = &VerifyInfo{
					Passed:    false,
					Attempts:  attempt,
					Reasoning: lastReasoning,
					Agent:     vcfg.Agent,
				}
			}
			return result
		}

		v := s.runVerifier(ctx, files, task, result, vcfg)
		if v.unavailable {
			reasoning := fmt.Sprintf("verifier unavailable, passing worker result through unjudged: %s", v.err)
			cb.verifierComplete(itemIndex, attempt, false, reasoning)
			result.Verify = &VerifyInfo{
				Passed:    false,
				Attempts:  attempt,
				Reasoning: reasoning,
				Agent:     vcfg.Agent,
			}
			return result
		}

		cb.verifierComplete(itemIndex, attempt, v.pass, v.reasoning)
		lastReasoning = v.reasoning

		if v.pass || attempt == max {
			result.Verify = &VerifyInfo{
				Passed:    v.pass,
				Attempts:  attempt,
				Reasoning: v.reasoning,
				Agent:     vcfg.Agent,
			}
			return result
		}

		prompt = appendFeedback(task.prompt, v.reasoning, v.feedback)
		s.logger.DebugContext(ctx, "verification failed, re-running worker with feedback",
			"item_index", itemIndex,
			"attempt", attempt,
		)
	}
	return result
}

// runVerifier judges a worker result against the criteria. The verifier
// sees the original task context plus the candidate output mounted under
// candidate_output/.
func (s *Swarm) runVerifier(
	ctx context.Context,
	files types.FileMap,
	task taskSpec,
	candidate Result,
	vcfg *VerifyConfig,
) verdict {
	input := executor.WorkerInput{
		Files:   files.Merge(candidate.Files.WithPrefix(candidateOutputPrefix)),
		Prompt:  verifierPrompt(task.prompt, vcfg.Criteria),
		Schema:  verifierSchema(),
		Agent:   vcfg.Agent,
		Timeout: task.timeout,
	}

	out := s.runWorker(ctx, input)
	if !out.Succeeded() || out.Data == nil {
		errMsg := out.Error
		if errMsg == "" {
			errMsg = "verifier returned no structured judgment"
		}
		return verdict{unavailable: true, err: errMsg}
	}

	pass, ok := out.Data["pass"].(bool)
	if !ok {
		return verdict{unavailable: true, err: "verifier judgment missing boolean pass field"}
	}
	reasoning, _ := out.Data["reasoning"].(string)
	feedback, _ := out.Data["feedback"].(string)
	return verdict{pass: pass, reasoning: reasoning, feedback: feedback}
}
