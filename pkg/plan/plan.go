// Package plan holds the data that flows forward through a run: the Plan produced
// from the user's request, the TaskPlan that decomposes it into single-file steps,
// and the CoderState cursor that walks those steps.
package plan

import (
	"encoding/json"
	"fmt"
)

// FileSpec is a planned file and its intended role.
type FileSpec struct {
	Path    string `json:"path" jsonschema_description:"Path of the file relative to the project root"`
	Purpose string `json:"purpose" jsonschema_description:"What this file is for"`
}

// Plan is the high-level description of the project to build.
type Plan struct {
	Name        string     `json:"name" jsonschema_description:"Short name of the app"`
	Description string     `json:"description" jsonschema_description:"One-line description of the app"`
	Techstack   string     `json:"techstack" jsonschema_description:"Tech stack used to build the app, e.g. html, css, javascript"`
	Files       []FileSpec `json:"files" jsonschema_description:"Every file the app needs"`
}

// ImplementationStep is one atomic unit of work against exactly one file.
type ImplementationStep struct {
	Filepath        string `json:"filepath" jsonschema_description:"Path of the file to create or modify"`
	TaskDescription string `json:"task_description" jsonschema_description:"Detailed description of what to implement in the file"`
}

// TaskPlan is the ordered decomposition of a Plan. Step order is authoritative.
type TaskPlan struct {
	Plan                *Plan                `json:"plan,omitempty" jsonschema_description:"The plan this task plan implements"`
	ImplementationSteps []ImplementationStep `json:"implementation_steps" jsonschema_description:"Ordered, single-file implementation steps"`
}

// Status is the coarse state of a CoderState.
type Status string

const (
	// StatusPending means at least one step remains.
	StatusPending Status = "PENDING"
	// StatusDone means every step has been executed.
	StatusDone Status = "DONE"
)

// CoderState is the progress cursor over a TaskPlan's steps.
// Invariant: 0 <= CurrentStepIdx <= len(TaskPlan.ImplementationSteps).
type CoderState struct {
	TaskPlan       *TaskPlan `json:"task_plan"`
	CurrentStepIdx int       `json:"current_step_idx"`
}

// NewCoderState returns the initial PENDING(0) state for tp.
func NewCoderState(tp *TaskPlan) *CoderState {
	return &CoderState{TaskPlan: tp}
}

// Total returns the number of steps.
func (s *CoderState) Total() int {
	if s == nil || s.TaskPlan == nil {
		return 0
	}
	return len(s.TaskPlan.ImplementationSteps)
}

// Status reports DONE once the index has reached the step count.
func (s *CoderState) Status() Status {
	if s.CurrentStepIdx >= s.Total() {
		return StatusDone
	}
	return StatusPending
}

// Current returns the step at the cursor. ok is false when the state is DONE.
func (s *CoderState) Current() (ImplementationStep, bool) {
	if s.Status() == StatusDone {
		return ImplementationStep{}, false
	}
	return s.TaskPlan.ImplementationSteps[s.CurrentStepIdx], true
}

// Advance moves the cursor forward by exactly one step.
func (s *CoderState) Advance() error {
	if s.Status() == StatusDone {
		return fmt.Errorf("cannot advance past step %d of %d", s.CurrentStepIdx, s.Total())
	}
	s.CurrentStepIdx++
	return nil
}

// Clone returns a copy whose cursor can move independently. The TaskPlan is shared.
func (s *CoderState) Clone() *CoderState {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (s *CoderState) String() string {
	if s.Status() == StatusDone {
		return fmt.Sprintf("%s(%d/%d)", StatusDone, s.CurrentStepIdx, s.Total())
	}
	return fmt.Sprintf("%s(%d/%d)", StatusPending, s.CurrentStepIdx, s.Total())
}

// Canonical renders p as indented JSON. It is the lossless text form handed to
// the architect.
func (p *Plan) Canonical() (string, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize plan: %w", err)
	}
	return string(data), nil
}

// Validate checks that p has the fields later stages rely on.
func (p *Plan) Validate() error {
	if p == nil {
		return fmt.Errorf("plan is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("plan name cannot be empty")
	}
	for i := range p.Files {
		if p.Files[i].Path == "" {
			return fmt.Errorf("plan file %d has empty path", i)
		}
	}
	return nil
}

// Validate checks that every step names a file.
func (tp *TaskPlan) Validate() error {
	if tp == nil {
		return fmt.Errorf("task plan is nil")
	}
	for i := range tp.ImplementationSteps {
		if tp.ImplementationSteps[i].Filepath == "" {
			return fmt.Errorf("implementation step %d has empty filepath", i)
		}
	}
	return nil
}
