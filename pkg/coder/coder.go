// Package coder implements the Step Executor: a two-state machine over a
// plan.CoderState that runs one implementation step per transition through a
// tool-using sub-agent.
package coder

import (
	"context"
	"errors"
	"fmt"

	"appforge/pkg/logx"
	"appforge/pkg/plan"
	"appforge/pkg/sandbox"
	"appforge/pkg/templates"
	"appforge/pkg/tools"
)

// ErrStepFailed is returned when the sub-agent could not complete a step.
var ErrStepFailed = errors.New("implementation step failed")

// Instruction is the bundle handed to the sub-agent for one step.
type Instruction struct {
	Step           plan.ImplementationStep
	Index          int
	CurrentContent string
	SystemPrompt   string
	TaskPrompt     string
	// Capabilities names the tools the sub-agent may call.
	Capabilities []string
}

// SubAgent carries out one step, typically by writing the step's file.
type SubAgent interface {
	Run(ctx context.Context, in *Instruction) error
}

// Executor advances a CoderState one step at a time.
type Executor struct {
	store    *sandbox.Store
	provider *tools.ToolProvider
	agent    SubAgent
	logger   *logx.Logger
}

// NewExecutor creates an executor that reads step files from store and offers
// the provider's tools to agent.
func NewExecutor(store *sandbox.Store, provider *tools.ToolProvider, agent SubAgent) *Executor {
	return &Executor{
		store:    store,
		provider: provider,
		agent:    agent,
		logger:   logx.NewLogger("coder"),
	}
}

// Step performs one transition. At PENDING(idx) it runs the step at idx and
// returns a new state at idx+1. At DONE it returns state unchanged without
// touching the store or the sub-agent. On failure state is returned unchanged
// together with an error wrapping ErrStepFailed.
func (e *Executor) Step(ctx context.Context, state *plan.CoderState) (*plan.CoderState, error) {
	if state == nil {
		return nil, fmt.Errorf("coder state is nil")
	}
	step, ok := state.Current()
	if !ok {
		return state, nil
	}
	idx := state.CurrentStepIdx

	in, err := e.instruction(idx, step)
	if err != nil {
		return state, fmt.Errorf("%w: step %d (%s): %w", ErrStepFailed, idx, step.Filepath, err)
	}

	e.logger.Info("Step %d/%d: %s", idx+1, state.Total(), step.Filepath)
	logx.Debug(ctx, "coder", "task: %s", step.TaskDescription)

	if err := e.agent.Run(ctx, in); err != nil {
		e.logger.Error("Step %d (%s) failed: %v", idx, step.Filepath, err)
		return state, fmt.Errorf("%w: step %d (%s): %w", ErrStepFailed, idx, step.Filepath, err)
	}

	if after, readErr := e.store.Read(step.Filepath); readErr == nil && after == in.CurrentContent {
		e.logger.Warn("Step %d finished without changing %s", idx, step.Filepath)
	}

	next := state.Clone()
	if err := next.Advance(); err != nil {
		return state, err
	}
	return next, nil
}

// instruction builds the bundle for step: current file content, rendered
// prompts and the capability set.
func (e *Executor) instruction(idx int, step plan.ImplementationStep) (*Instruction, error) {
	current, err := e.store.Read(step.Filepath)
	if err != nil {
		return nil, err
	}

	system, err := templates.Render(templates.CoderSystemTemplate, &templates.TemplateData{
		ToolDocumentation: e.provider.GenerateToolDocumentation(),
	})
	if err != nil {
		return nil, err
	}
	task, err := templates.Render(templates.CoderTaskTemplate, &templates.TemplateData{
		TaskDescription: step.TaskDescription,
		Filepath:        step.Filepath,
		CurrentContent:  current,
	})
	if err != nil {
		return nil, err
	}

	metas := e.provider.List()
	caps := make([]string, len(metas))
	for i := range metas {
		caps[i] = metas[i].Name
	}

	return &Instruction{
		Step:           step,
		Index:          idx,
		CurrentContent: current,
		SystemPrompt:   system,
		TaskPrompt:     task,
		Capabilities:   caps,
	}, nil
}
