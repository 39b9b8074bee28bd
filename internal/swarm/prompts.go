package swarm

import (
	"fmt"
	"strings"

	"github.com/evolving-machines-lab/evolve-sub003/internal/types"
)

// verifierSchema is the fixed judgment shape verifiers must emit.
func verifierSchema() *types.JSONSchema {
	return types.ObjectSchema(map[string]*types.JSONSchema{
		"pass":      types.BoolProperty("whether the candidate output meets the criteria"),
		"reasoning": types.StringProperty("judgment rationale"),
		"feedback":  types.StringProperty("actionable guidance for a re-attempt, when failing"),
	}, "pass", "reasoning")
}

// judgeSchema is the fixed decision shape bestOf judges must emit.
func judgeSchema() *types.JSONSchema {
	return types.ObjectSchema(map[string]*types.JSONSchema{
		"winner":    types.NumberProperty("zero-based index of the winning candidate"),
		"reasoning": types.StringProperty("selection rationale"),
	}, "winner", "reasoning")
}

// verifierPrompt instructs a verifier to judge a candidate output, found
// under candidate_output/, against the criteria.
func verifierPrompt(taskPrompt, criteria string) string {
	var b strings.Builder
	b.WriteString("You are verifying the output of a worker that was given the following task:\n\n")
	b.WriteString(taskPrompt)
	b.WriteString("\n\nThe worker's output is mounted under ")
	b.WriteString(candidateOutputPrefix)
	b.WriteString("/ alongside the original task files.\n\n")
	b.WriteString("Judge whether the output meets these criteria:\n\n")
	b.WriteString(criteria)
	b.WriteString("\n\nReport pass or fail with your reasoning. When failing, include concrete feedback the worker can act on.")
	return b.String()
}

// appendFeedback rebuilds a worker prompt for a re-attempt by appending
// the verifier's judgment to the original instruction.
func appendFeedback(original, reasoning, feedback string) string {
	guidance := feedback
	if guidance == "" {
		guidance = reasoning
	}
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\n## Feedback on your previous attempt\n\n")
	b.WriteString("A reviewer rejected your previous output for the reasons below. Address them.\n\n")
	b.WriteString(guidance)
	return b.String()
}

// judgePrompt presents the task, the evaluation criteria, and every
// candidate's output to the judge. Errored candidates are still listed,
// marked as failed, so the judge can deprioritize them.
func judgePrompt(taskPrompt, criteria string, candidates []Result) string {
	var b strings.Builder
	b.WriteString("Several workers independently attempted the following task:\n\n")
	b.WriteString(taskPrompt)
	b.WriteString("\n\nSelect the best result according to these criteria:\n\n")
	b.WriteString(criteria)
	b.WriteString("\n\n## Candidates\n")
	for i, candidate := range candidates {
		fmt.Fprintf(&b, "\n### Candidate %d\n\n", i)
		b.WriteString(renderCandidate(candidate))
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with the zero-based index of the winning candidate and your reasoning.")
	return b.String()
}

// renderCandidate flattens one candidate's output for the judge.
func renderCandidate(candidate Result) string {
	if candidate.Status == StatusError {
		return fmt.Sprintf("FAILED: %s", candidate.Error)
	}

	var b strings.Builder
	if candidate.RawData != "" {
		b.WriteString(candidate.RawData)
		b.WriteString("\n")
	}
	for _, path := range candidate.Files.Paths() {
		fmt.Fprintf(&b, "\n#### %s\n```\n%s\n```\n", path, candidate.Files[path])
	}
	if b.Len() == 0 {
		return "(empty output)"
	}
	return b.String()
}
