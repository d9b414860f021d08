package orchestrator

import (
	"errors"
	"fmt"

	"appforge/pkg/coder"
	"appforge/pkg/structured"
)

var (
	// ErrGeneration is returned when the planner or architect got no usable result.
	ErrGeneration = structured.ErrGeneration

	// ErrStepFailed is returned when the coder's sub-agent failed a step.
	ErrStepFailed = coder.ErrStepFailed

	// ErrCeilingExceeded is returned when another node invocation would exceed
	// the run's invocation ceiling.
	ErrCeilingExceeded = errors.New("node invocation ceiling exceeded")
)

// StageError names the node that failed a run. Step is the coder step index,
// or -1 for the plan and architect nodes.
type StageError struct {
	Err   error
	Stage Node
	Step  int
}

func (e *StageError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("%s stage failed at step %d: %v", e.Stage, e.Step, e.Err)
	}
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
