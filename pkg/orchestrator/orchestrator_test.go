package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/architect"
	"appforge/pkg/coder"
	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
	"appforge/pkg/metrics"
	"appforge/pkg/plan"
	"appforge/pkg/planner"
	"appforge/pkg/sandbox"
	"appforge/pkg/tools"
)

var fileToModify = regexp.MustCompile(`File to modify: (\S+)`)

// fakeModel answers the planner and architect through their forced tools and
// makes the coder write "<content of path>" into the step's file.
func fakeModel(files ...string) mock.Handler {
	return func(req llm.CompletionRequest) (llm.CompletionResponse, error) {
		if len(req.Tools) == 1 {
			switch req.Tools[0].Name {
			case planner.SubmitPlanTool:
				specs := make([]any, len(files))
				for i, f := range files {
					specs[i] = map[string]any{"path": f, "purpose": "part of the app"}
				}
				return llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "p", Name: planner.SubmitPlanTool, Parameters: map[string]any{
					"name": "Hello", "description": "hello page", "techstack": "html", "files": specs,
				}}}}, nil
			case architect.SubmitTaskPlanTool:
				steps := make([]any, len(files))
				for i, f := range files {
					steps[i] = map[string]any{"filepath": f, "task_description": "write " + f}
				}
				return llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "a", Name: architect.SubmitTaskPlanTool, Parameters: map[string]any{
					"implementation_steps": steps,
				}}}}, nil
			}
		}

		last := req.Messages[len(req.Messages)-1]
		if len(last.ToolResults) > 0 {
			return llm.CompletionResponse{Content: "done"}, nil
		}
		m := fileToModify.FindStringSubmatch(last.Content)
		if m == nil {
			return llm.CompletionResponse{}, fmt.Errorf("unexpected request")
		}
		return llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "w", Name: tools.ToolWriteFile, Parameters: map[string]any{
			"path": m[1], "content": "content of " + m[1],
		}}}}, nil
	}
}

func newOrchestrator(t *testing.T, root string, client llm.LLMClient, cfg Config) *Orchestrator {
	t.Helper()
	store, err := sandbox.New(root)
	require.NoError(t, err)
	provider, err := tools.NewProvider(store, tools.CoderTools)
	require.NoError(t, err)
	return New(
		planner.New(client, planner.Config{}),
		architect.New(client, architect.Config{}),
		coder.NewExecutor(store, provider, coder.NewLLMSubAgent(client, provider, coder.AgentConfig{})),
		cfg,
	)
}

func TestRun_SinglePageEndToEnd(t *testing.T) {
	root := t.TempDir()
	var events []Event
	o := newOrchestrator(t, root, mock.NewWithHandler("mock", fakeModel("index.html")), Config{
		OnTransition: func(e Event) { events = append(events, e) },
	})

	state, err := o.Run(context.Background(), Input{UserPrompt: "Build a hello page"}, 10)
	require.NoError(t, err)

	assert.Equal(t, plan.StatusDone, state.Status)
	assert.Equal(t, 4, state.Invocations)
	assert.Equal(t, "Hello", state.Plan.Name)
	assert.Same(t, state.Plan, state.TaskPlan.Plan)
	assert.Equal(t, 1, state.CoderState.CurrentStepIdx)
	assert.NotEmpty(t, state.RunID)

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "content of index.html", string(data))

	nodes := make([]Node, len(events))
	for i, e := range events {
		nodes[i] = e.Node
		assert.Equal(t, i+1, e.Invocation)
	}
	assert.Equal(t, []Node{NodePlan, NodeArchitect, NodeCoder, NodeCoder}, nodes)
	assert.Equal(t, 0, events[2].StepIdx)
	assert.Equal(t, 1, events[3].StepIdx)
	assert.Equal(t, 1, events[3].TotalSteps)
}

func TestRun_CeilingExceeded(t *testing.T) {
	root := t.TempDir()
	client := mock.NewWithHandler("mock", fakeModel("a.html", "b.html", "c.html", "d.html", "e.html"))
	o := newOrchestrator(t, root, client, Config{})

	state, err := o.Run(context.Background(), Input{UserPrompt: "five files"}, 3)
	require.ErrorIs(t, err, ErrCeilingExceeded)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, NodeCoder, serr.Stage)
	assert.Equal(t, 1, serr.Step)

	assert.Equal(t, 3, state.Invocations)
	assert.Equal(t, 1, state.CoderState.CurrentStepIdx)
	assert.Empty(t, state.Status)

	_, statErr := os.Stat(filepath.Join(root, "a.html"))
	require.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(root, "b.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_ZeroStepsFinishesImmediately(t *testing.T) {
	o := newOrchestrator(t, t.TempDir(), mock.NewWithHandler("mock", fakeModel()), Config{})

	state, err := o.Run(context.Background(), Input{UserPrompt: "nothing"}, 3)
	require.NoError(t, err)
	assert.Equal(t, plan.StatusDone, state.Status)
	assert.Equal(t, 3, state.Invocations)
}

func TestRun_GenerationFailure(t *testing.T) {
	client := mock.New("mock", mock.Reply("I would rather chat"))
	o := newOrchestrator(t, t.TempDir(), client, Config{})

	state, err := o.Run(context.Background(), Input{UserPrompt: "x"}, 10)
	require.ErrorIs(t, err, ErrGeneration)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, NodePlan, serr.Stage)
	assert.Equal(t, -1, serr.Step)
	assert.Nil(t, state.Plan)
	assert.Equal(t, 1, state.Invocations)
}

// fixed stages for failure-path tests
type fixedPlanner struct{}

func (fixedPlanner) Generate(context.Context, string) (*plan.Plan, error) {
	return &plan.Plan{Name: "x"}, nil
}

type fixedArchitect struct{ steps int }

func (a fixedArchitect) Decompose(_ context.Context, p *plan.Plan) (*plan.TaskPlan, error) {
	tp := &plan.TaskPlan{Plan: p}
	for i := 0; i < a.steps; i++ {
		tp.ImplementationSteps = append(tp.ImplementationSteps, plan.ImplementationStep{Filepath: fmt.Sprintf("f%d", i)})
	}
	return tp, nil
}

type nilPlanner struct{}

func (nilPlanner) Generate(context.Context, string) (*plan.Plan, error) { return nil, nil }

type nilArchitect struct{}

func (nilArchitect) Decompose(context.Context, *plan.Plan) (*plan.TaskPlan, error) { return nil, nil }

func TestRun_EmptyStageResultIsGenerationFailure(t *testing.T) {
	tests := []struct {
		name      string
		planner   Planner
		architect Architect
		stage     Node
		calls     int
	}{
		{"planner returns nothing", nilPlanner{}, fixedArchitect{steps: 1}, NodePlan, 1},
		{"architect returns nothing", fixedPlanner{}, nilArchitect{}, NodeArchitect, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &failingExecutor{failAt: -1}
			o := New(tt.planner, tt.architect, exec, Config{})

			state, err := o.Run(context.Background(), Input{UserPrompt: "x"}, 10)
			require.ErrorIs(t, err, ErrGeneration)

			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.stage, serr.Stage)
			assert.NotEqual(t, plan.StatusDone, state.Status)
			assert.Nil(t, state.TaskPlan)
			assert.Equal(t, tt.calls, state.Invocations)
			assert.Zero(t, exec.calls)
		})
	}
}

type failingExecutor struct {
	failAt int
	calls  int
}

func (f *failingExecutor) Step(_ context.Context, s *plan.CoderState) (*plan.CoderState, error) {
	f.calls++
	if s.Status() == plan.StatusDone {
		return s, nil
	}
	if s.CurrentStepIdx == f.failAt {
		return s, fmt.Errorf("%w: boom", coder.ErrStepFailed)
	}
	next := s.Clone()
	return next, next.Advance()
}

func TestRun_StepFailureStopsWithIndexUnchanged(t *testing.T) {
	exec := &failingExecutor{failAt: 1}
	o := New(fixedPlanner{}, fixedArchitect{steps: 3}, exec, Config{})

	state, err := o.Run(context.Background(), Input{UserPrompt: "x"}, 100)
	require.ErrorIs(t, err, ErrStepFailed)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, NodeCoder, serr.Stage)
	assert.Equal(t, 1, serr.Step)
	assert.Equal(t, 1, state.CoderState.CurrentStepIdx)
	assert.Equal(t, 2, exec.calls)
}

func TestRun_CanceledBeforeFirstNode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := New(fixedPlanner{}, fixedArchitect{steps: 1}, &failingExecutor{failAt: -1}, Config{})

	state, err := o.Run(ctx, Input{UserPrompt: "x"}, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCeilingExceeded)
	assert.Equal(t, 0, state.Invocations)
}

func TestRun_InvocationCountForNSteps(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		o := New(fixedPlanner{}, fixedArchitect{steps: n}, &failingExecutor{failAt: -1}, Config{})

		state, err := o.Run(context.Background(), Input{UserPrompt: "x"}, n+3)
		require.NoError(t, err, "steps=%d", n)
		assert.Equal(t, n+3, state.Invocations)
		assert.Equal(t, n, state.CoderState.CurrentStepIdx)

		_, err = New(fixedPlanner{}, fixedArchitect{steps: n}, &failingExecutor{failAt: -1}, Config{}).
			Run(context.Background(), Input{UserPrompt: "x"}, n+2)
		require.ErrorIs(t, err, ErrCeilingExceeded, "steps=%d", n)
	}
}

func TestRun_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(fixedPlanner{}, fixedArchitect{steps: 2}, &failingExecutor{failAt: -1}, Config{
		Recorder: metrics.NewPrometheusRecorder(reg),
	})

	_, err := o.Run(context.Background(), Input{UserPrompt: "x"}, 10)
	require.NoError(t, err)

	rm, err := metrics.Summarize(reg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rm.NodeInvocations["plan"])
	assert.Equal(t, int64(3), rm.NodeInvocations["coder"])
	assert.Equal(t, int64(2), rm.StepsSucceeded)
}

func TestTransitions(t *testing.T) {
	assert.True(t, IsValidTransition(NodePlan, NodeArchitect))
	assert.True(t, IsValidTransition(NodeCoder, NodeCoder))
	assert.True(t, IsValidTransition(NodeCoder, NodeEnd))
	assert.False(t, IsValidTransition(NodePlan, NodeCoder))
	assert.False(t, IsValidTransition(NodeEnd, NodePlan))
}

func TestStageError(t *testing.T) {
	inner := errors.New("inner")
	e := &StageError{Stage: NodeCoder, Step: 2, Err: inner}
	assert.Equal(t, "coder stage failed at step 2: inner", e.Error())
	assert.ErrorIs(t, e, inner)
	assert.Equal(t, "plan stage failed: inner", (&StageError{Stage: NodePlan, Step: -1, Err: inner}).Error())
}
