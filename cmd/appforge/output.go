package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"appforge/pkg/metrics"
	"appforge/pkg/orchestrator"
)

func printTransition(w io.Writer, e orchestrator.Event) {
	label := string(e.Node)
	if e.Node == orchestrator.NodeCoder {
		if e.StepIdx < e.TotalSteps {
			label = fmt.Sprintf("coder step %d/%d", e.StepIdx+1, e.TotalSteps)
		} else {
			label = "coder finishing"
		}
	}
	fmt.Fprintf(w, "  %s %s\n", color.HiBlackString("[%d]", e.Invocation), label)
}

func printSummary(w io.Writer, state *orchestrator.State, root string, files []string, rm *metrics.RunMetrics, runErr error) {
	fmt.Fprintln(w)
	if runErr != nil {
		fmt.Fprintf(w, "%s %v\n", color.RedString("✗"), runErr)
		var serr *orchestrator.StageError
		if errors.As(runErr, &serr) && errors.Is(serr, orchestrator.ErrCeilingExceeded) {
			fmt.Fprintf(w, "  %s raise --max-invocations to let the run finish\n", color.YellowString("⚠"))
		}
	} else {
		fmt.Fprintf(w, "%s Done\n", color.GreenString("✓"))
	}

	if state != nil && state.Plan != nil {
		fmt.Fprintf(w, "  Plan:    %s - %s\n", color.CyanString(state.Plan.Name), state.Plan.Description)
	}
	if state != nil && state.CoderState != nil {
		fmt.Fprintf(w, "  Steps:   %d/%d completed\n", state.CoderState.CurrentStepIdx, state.CoderState.Total())
	}
	if state != nil {
		fmt.Fprintf(w, "  Invocations: %d\n", state.Invocations)
	}
	if rm != nil {
		fmt.Fprintf(w, "  LLM:     %d requests, %d tokens (%d prompt / %d completion)\n",
			rm.LLMRequests, rm.TotalTokens, rm.PromptTokens, rm.CompletionTokens)
	}
	fmt.Fprintf(w, "  Files in %s (%d):\n", root, len(files))
	for _, f := range files {
		fmt.Fprintf(w, "    - %s\n", f)
	}
}
