package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/evolving-machines-lab/evolve-sub003/internal/pipeline"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// consoleSink renders pipeline progress to the terminal as it happens.
func consoleSink(w io.Writer) pipeline.EventSink {
	return pipeline.EventSinkFunc(func(ctx context.Context, event pipeline.Event) {
		switch event.Kind {
		case pipeline.EventStepStart:
			fmt.Fprintf(w, "%s %s\n",
				stepStyle.Render(fmt.Sprintf("[%d] %s", event.StepIndex+1, event.StepName)),
				dimStyle.Render(string(event.StepKind)))
		case pipeline.EventStepComplete:
			fmt.Fprintf(w, "    %s %s\n",
				renderCounts(event.Counts),
				dimStyle.Render(event.Duration.Round(time.Millisecond).String()))
		case pipeline.EventStepError:
			fmt.Fprintf(w, "    %s\n", errorStyle.Render("failed: "+event.Err))
		case pipeline.EventItemRetry:
			fmt.Fprintf(w, "    %s\n",
				warnStyle.Render(fmt.Sprintf("retrying item %d (attempt %d): %s",
					event.ItemIndex, event.Attempt, event.Err)))
		case pipeline.EventVerifierComplete:
			verdict := successStyle.Render("pass")
			if !event.Passed {
				verdict = warnStyle.Render("fail")
			}
			fmt.Fprintf(w, "    %s item %d attempt %d: %s\n",
				dimStyle.Render("verify"), event.ItemIndex, event.Attempt, verdict)
		case pipeline.EventJudgeComplete:
			fmt.Fprintf(w, "    %s item %d: candidate %d\n",
				dimStyle.Render("judge"), event.ItemIndex, event.WinnerIndex)
		}
	})
}

func renderCounts(c pipeline.StatusCounts) string {
	out := successStyle.Render(fmt.Sprintf("%d ok", c.Success))
	if c.Filtered > 0 {
		out += " " + warnStyle.Render(fmt.Sprintf("%d filtered", c.Filtered))
	}
	if c.Errors > 0 {
		out += " " + errorStyle.Render(fmt.Sprintf("%d failed", c.Errors))
	}
	return out
}

// printSummary renders the per-step outcome table after a run.
func printSummary(w io.Writer, result *pipeline.RunResult, outputDir string) {
	fmt.Fprintln(w, titleStyle.Render("\nSummary"))
	for i, step := range result.Steps {
		fmt.Fprintf(w, "  %s %-20s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%d.", i+1)),
			step.Name,
			renderCounts(step.Counts),
			dimStyle.Render(step.Duration.Round(time.Millisecond).String()))
	}
	fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("total"), result.Duration.Round(time.Millisecond).String())
	fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("output"), outputDir)
}
