package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeSteps() *TaskPlan {
	return &TaskPlan{
		ImplementationSteps: []ImplementationStep{
			{Filepath: "index.html", TaskDescription: "markup"},
			{Filepath: "style.css", TaskDescription: "styles"},
			{Filepath: "app.js", TaskDescription: "behavior"},
		},
	}
}

func TestCoderState_WalksStepsInOrder(t *testing.T) {
	s := NewCoderState(threeSteps())
	assert.Equal(t, 0, s.CurrentStepIdx)
	assert.Equal(t, StatusPending, s.Status())

	var seen []string
	for s.Status() == StatusPending {
		step, ok := s.Current()
		require.True(t, ok)
		seen = append(seen, step.Filepath)

		before := s.CurrentStepIdx
		require.NoError(t, s.Advance())
		assert.Equal(t, before+1, s.CurrentStepIdx)
	}

	assert.Equal(t, []string{"index.html", "style.css", "app.js"}, seen)
	assert.Equal(t, StatusDone, s.Status())
	assert.Equal(t, s.Total(), s.CurrentStepIdx)
}

func TestCoderState_AdvancePastEndFails(t *testing.T) {
	s := &CoderState{TaskPlan: threeSteps(), CurrentStepIdx: 3}

	require.Error(t, s.Advance())
	assert.Equal(t, 3, s.CurrentStepIdx)

	_, ok := s.Current()
	assert.False(t, ok)
}

func TestCoderState_ZeroStepsIsDone(t *testing.T) {
	s := NewCoderState(&TaskPlan{})

	assert.Equal(t, StatusDone, s.Status())
	assert.Equal(t, 0, s.Total())
	require.Error(t, s.Advance())
}

func TestCoderState_CloneIsIndependent(t *testing.T) {
	s := NewCoderState(threeSteps())
	c := s.Clone()
	require.NoError(t, c.Advance())

	assert.Equal(t, 0, s.CurrentStepIdx)
	assert.Equal(t, 1, c.CurrentStepIdx)
	assert.Same(t, s.TaskPlan, c.TaskPlan)
	assert.Equal(t, "PENDING(1/3)", c.String())
}

func TestPlan_CanonicalIsLossless(t *testing.T) {
	p := &Plan{
		Name:        "Hello Page",
		Description: "a static page",
		Techstack:   "html",
		Files:       []FileSpec{{Path: "index.html", Purpose: "the page"}},
	}

	text, err := p.Canonical()
	require.NoError(t, err)
	assert.Contains(t, text, `"techstack": "html"`)

	var back Plan
	require.NoError(t, json.Unmarshal([]byte(text), &back))
	assert.Equal(t, *p, back)
}

func TestTaskPlan_JSONFieldNames(t *testing.T) {
	raw := `{"implementation_steps":[{"filepath":"index.html","task_description":"create the page"}]}`

	var tp TaskPlan
	require.NoError(t, json.Unmarshal([]byte(raw), &tp))
	require.Len(t, tp.ImplementationSteps, 1)
	assert.Equal(t, "create the page", tp.ImplementationSteps[0].TaskDescription)
	assert.Nil(t, tp.Plan)
}

func TestValidate(t *testing.T) {
	require.Error(t, (*Plan)(nil).Validate())
	require.Error(t, (&Plan{}).Validate())
	require.Error(t, (&Plan{Name: "x", Files: []FileSpec{{Purpose: "no path"}}}).Validate())
	require.NoError(t, (&Plan{Name: "x"}).Validate())

	require.Error(t, (*TaskPlan)(nil).Validate())
	require.Error(t, (&TaskPlan{ImplementationSteps: []ImplementationStep{{TaskDescription: "x"}}}).Validate())
	require.NoError(t, threeSteps().Validate())
}
