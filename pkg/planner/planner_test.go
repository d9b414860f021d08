package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
	"appforge/pkg/structured"
)

func planArgs(name string) map[string]any {
	return map[string]any{
		"name":        name,
		"description": "todo list",
		"techstack":   "html, css, javascript",
		"files": []any{
			map[string]any{"path": "index.html", "purpose": "markup"},
			map[string]any{"path": "app.js", "purpose": "logic"},
		},
	}
}

func TestGenerate(t *testing.T) {
	client := mock.New("mock-model", mock.ToolCalls(mock.Call("1", SubmitPlanTool, planArgs("Todo"))))

	p, err := New(client, Config{}).Generate(context.Background(), "Build a todo app")
	require.NoError(t, err)
	assert.Equal(t, "Todo", p.Name)
	assert.Len(t, p.Files, 2)

	req := client.Requests()[0]
	assert.InDelta(t, llm.TemperatureDefault, req.Temperature, 0.0001)
	assert.Contains(t, req.Messages[len(req.Messages)-1].Content, "Build a todo app")
}

func TestGenerate_Failures(t *testing.T) {
	t.Run("no structured result", func(t *testing.T) {
		client := mock.New("mock-model", mock.Reply("sorry"))
		p, err := New(client, Config{}).Generate(context.Background(), "Build a todo app")
		require.ErrorIs(t, err, structured.ErrGeneration)
		assert.Nil(t, p)
	})

	t.Run("empty name", func(t *testing.T) {
		client := mock.New("mock-model", mock.ToolCalls(mock.Call("1", SubmitPlanTool, planArgs(""))))
		_, err := New(client, Config{}).Generate(context.Background(), "Build a todo app")
		require.ErrorIs(t, err, structured.ErrGeneration)
	})

	t.Run("empty prompt makes no call", func(t *testing.T) {
		client := mock.New("mock-model")
		_, err := New(client, Config{}).Generate(context.Background(), "   ")
		require.ErrorIs(t, err, structured.ErrGeneration)
		assert.Equal(t, 0, client.Calls())
	})
}
