// Package orchestrator drives a run through the plan → architect → coder graph,
// looping on coder until every implementation step is done, under a ceiling on
// the total number of node invocations.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	llmmetrics "appforge/pkg/llm/middleware/metrics"
	"appforge/pkg/logx"
	"appforge/pkg/metrics"
	"appforge/pkg/plan"
)

// Node names a vertex of the run graph.
type Node string

const (
	NodePlan      Node = "plan"
	NodeArchitect Node = "architect"
	NodeCoder     Node = "coder"
	NodeEnd       Node = "end"
)

// Transitions is the run graph. coder loops on itself until its state is DONE.
//
//nolint:gochecknoglobals // fixed graph definition
var Transitions = map[Node][]Node{
	NodePlan:      {NodeArchitect},
	NodeArchitect: {NodeCoder},
	NodeCoder:     {NodeCoder, NodeEnd},
}

// IsValidTransition reports whether the graph has an edge from -> to.
func IsValidTransition(from, to Node) bool {
	for _, n := range Transitions[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Planner produces a Plan from the user's request.
type Planner interface {
	Generate(ctx context.Context, userPrompt string) (*plan.Plan, error)
}

// Architect decomposes a Plan into a TaskPlan.
type Architect interface {
	Decompose(ctx context.Context, p *plan.Plan) (*plan.TaskPlan, error)
}

// StepExecutor advances a CoderState by one step.
type StepExecutor interface {
	Step(ctx context.Context, state *plan.CoderState) (*plan.CoderState, error)
}

// Input starts a run.
type Input struct {
	UserPrompt string
}

// State accumulates everything a run produces. Fields are filled in node order.
type State struct {
	RunID       string           `json:"run_id"`
	UserPrompt  string           `json:"user_prompt"`
	Plan        *plan.Plan       `json:"plan,omitempty"`
	TaskPlan    *plan.TaskPlan   `json:"task_plan,omitempty"`
	CoderState  *plan.CoderState `json:"coder_state,omitempty"`
	Status      plan.Status      `json:"status,omitempty"`
	Invocations int              `json:"invocations"`
}

// Event describes one node invocation, emitted before the node runs.
type Event struct {
	RunID      string
	Node       Node
	Invocation int
	// StepIdx and TotalSteps are set for coder invocations.
	StepIdx    int
	TotalSteps int
}

// Config holds optional collaborators.
type Config struct {
	Recorder metrics.Recorder
	// OnTransition is called before every node invocation.
	OnTransition func(Event)
}

// Orchestrator runs the graph.
type Orchestrator struct {
	planner      Planner
	architect    Architect
	coder        StepExecutor
	recorder     metrics.Recorder
	onTransition func(Event)
	logger       *logx.Logger
}

// New creates an orchestrator over the three stages.
func New(p Planner, a Architect, c StepExecutor, cfg Config) *Orchestrator {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.Nop{}
	}
	return &Orchestrator{
		planner:      p,
		architect:    a,
		coder:        c,
		recorder:     cfg.Recorder,
		onTransition: cfg.OnTransition,
		logger:       logx.NewLogger("orchestrator"),
	}
}

// Run executes the graph for in, allowing at most ceiling node invocations in
// total. It returns the accumulated state, also on failure. Every error is a
// *StageError wrapping ErrGeneration, ErrStepFailed, ErrCeilingExceeded or the
// context's error.
func (o *Orchestrator) Run(ctx context.Context, in Input, ceiling int) (*State, error) {
	state := &State{
		RunID:      uuid.NewString(),
		UserPrompt: in.UserPrompt,
	}
	ctx = context.WithValue(ctx, logx.RunIDKey, state.RunID)
	start := time.Now()

	o.logger.Info("Run %s started (ceiling %d)", state.RunID, ceiling)

	node := NodePlan
	for node != NodeEnd {
		step := o.stepIndex(node, state)

		if state.Invocations >= ceiling {
			err := &StageError{
				Stage: node,
				Step:  step,
				Err:   fmt.Errorf("%w: limit %d reached", ErrCeilingExceeded, ceiling),
			}
			o.finish(state, "ceiling_exceeded", start, err)
			return state, err
		}
		if err := ctx.Err(); err != nil {
			serr := &StageError{Stage: node, Step: step, Err: err}
			o.finish(state, "canceled", start, serr)
			return state, serr
		}

		state.Invocations++
		o.emit(node, state)
		logx.DebugState(ctx, "orchestrator", "invoke", string(node))

		nodeStart := time.Now()
		next, err := o.invoke(llmmetrics.WithStage(ctx, string(node)), node, state)
		o.recorder.ObserveNode(string(node), time.Since(nodeStart), err)
		if err != nil {
			serr := &StageError{Stage: node, Step: step, Err: err}
			o.finish(state, "error", start, serr)
			return state, serr
		}
		if !IsValidTransition(node, next) {
			serr := &StageError{Stage: node, Step: step, Err: fmt.Errorf("invalid transition %s -> %s", node, next)}
			o.finish(state, "error", start, serr)
			return state, serr
		}
		node = next
	}

	state.Status = plan.StatusDone
	o.finish(state, "done", start, nil)
	return state, nil
}

// invoke runs one node and returns the next node.
func (o *Orchestrator) invoke(ctx context.Context, node Node, state *State) (Node, error) {
	switch node {
	case NodePlan:
		p, err := o.planner.Generate(ctx, state.UserPrompt)
		if err != nil {
			return "", err
		}
		if p == nil {
			return "", fmt.Errorf("%w: planner returned no plan", ErrGeneration)
		}
		state.Plan = p
		return NodeArchitect, nil

	case NodeArchitect:
		tp, err := o.architect.Decompose(ctx, state.Plan)
		if err != nil {
			return "", err
		}
		if tp == nil {
			return "", fmt.Errorf("%w: architect returned no task plan", ErrGeneration)
		}
		state.TaskPlan = tp
		state.CoderState = plan.NewCoderState(tp)
		return NodeCoder, nil

	case NodeCoder:
		if state.CoderState.Status() == plan.StatusDone {
			if _, err := o.coder.Step(ctx, state.CoderState); err != nil {
				return "", err
			}
			return NodeEnd, nil
		}
		stepStart := time.Now()
		next, err := o.coder.Step(ctx, state.CoderState)
		o.recorder.ObserveStep(time.Since(stepStart), err)
		if err != nil {
			return "", err
		}
		state.CoderState = next
		return NodeCoder, nil

	default:
		return "", fmt.Errorf("unknown node %s", node)
	}
}

func (o *Orchestrator) stepIndex(node Node, state *State) int {
	if node != NodeCoder || state.CoderState == nil {
		return -1
	}
	return state.CoderState.CurrentStepIdx
}

func (o *Orchestrator) emit(node Node, state *State) {
	if o.onTransition == nil {
		return
	}
	ev := Event{
		RunID:      state.RunID,
		Node:       node,
		Invocation: state.Invocations,
		StepIdx:    -1,
	}
	if node == NodeCoder && state.CoderState != nil {
		ev.StepIdx = state.CoderState.CurrentStepIdx
		ev.TotalSteps = state.CoderState.Total()
	}
	o.onTransition(ev)
}

func (o *Orchestrator) finish(state *State, status string, start time.Time, err error) {
	duration := time.Since(start)
	o.recorder.ObserveRun(status, duration)
	if err != nil {
		o.logger.Error("Run %s stopped after %d invocations (%.1fs): %v",
			state.RunID, state.Invocations, duration.Seconds(), err)
		return
	}
	o.logger.Info("Run %s finished after %d invocations (%.1fs), coder %s",
		state.RunID, state.Invocations, duration.Seconds(), state.CoderState)
}
