package toolloop_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/contextmgr"
	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
	"appforge/pkg/sandbox"
	"appforge/pkg/toolloop"
	"appforge/pkg/tools"
)

func newProvider(t *testing.T) (*tools.ToolProvider, string) {
	t.Helper()
	root := t.TempDir()
	store, err := sandbox.New(root)
	require.NoError(t, err)
	provider, err := tools.NewProvider(store, tools.CoderTools)
	require.NoError(t, err)
	return provider, root
}

func TestRun_ExecutesToolsUntilPlainAnswer(t *testing.T) {
	provider, root := newProvider(t)
	client := mock.New("mock-model",
		mock.ToolCalls(mock.Call("c1", tools.ToolWriteFile, map[string]any{"path": "index.html", "content": "<h1>hi</h1>"})),
		mock.ToolCalls(mock.Call("c2", tools.ToolReadFile, map[string]any{"path": "index.html"})),
		mock.Reply("done"),
	)

	cm := contextmgr.NewContextManager()
	res, err := toolloop.New(client, nil).Run(context.Background(), &toolloop.Config{
		ContextManager: cm,
		ToolProvider:   provider,
		SystemPrompt:   "system",
		InitialPrompt:  "write index.html",
	})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Content)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 2, res.ToolCalls)

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(data))

	reqs := client.Requests()
	require.Len(t, reqs, 3)
	assert.Len(t, reqs[0].Tools, len(tools.CoderTools))
	assert.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)

	// The third request carries the read_file result.
	last := reqs[2].Messages[len(reqs[2].Messages)-1]
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "c2", last.ToolResults[0].ToolCallID)
	assert.Equal(t, "<h1>hi</h1>", last.ToolResults[0].Content)
}

func TestRun_ToolErrorsAreReportedToModel(t *testing.T) {
	provider, _ := newProvider(t)
	client := mock.New("mock-model",
		mock.ToolCalls(
			mock.Call("bad", tools.ToolWriteFile, map[string]any{"path": "../escape.txt", "content": "x"}),
			mock.Call("unknown", "delete_everything", map[string]any{}),
		),
		mock.Reply("gave up"),
	)

	res, err := toolloop.New(client, nil).Run(context.Background(), &toolloop.Config{
		ContextManager: contextmgr.NewContextManager(),
		ToolProvider:   provider,
		InitialPrompt:  "try",
	})
	require.NoError(t, err)
	assert.Equal(t, "gave up", res.Content)

	reqs := client.Requests()
	results := reqs[1].Messages[len(reqs[1].Messages)-1].ToolResults
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, r.IsError)
		assert.True(t, strings.HasPrefix(r.Content, "Error: "))
	}
}

func TestRun_MaxIterations(t *testing.T) {
	provider, _ := newProvider(t)
	client := mock.NewWithHandler("mock-model", func(_ llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{ToolCalls: []llm.ToolCall{mock.Call("l", tools.ToolListFiles, map[string]any{})}}, nil
	})

	res, err := toolloop.New(client, nil).Run(context.Background(), &toolloop.Config{
		ContextManager: contextmgr.NewContextManager(),
		ToolProvider:   provider,
		InitialPrompt:  "loop forever",
		MaxIterations:  3,
	})
	require.ErrorIs(t, err, toolloop.ErrMaxIterations)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, client.Calls())
}

func TestRun_LLMErrorPropagates(t *testing.T) {
	provider, _ := newProvider(t)
	boom := errors.New("boom")
	client := mock.New("mock-model", mock.Fail(boom))

	_, err := toolloop.New(client, nil).Run(context.Background(), &toolloop.Config{
		ContextManager: contextmgr.NewContextManager(),
		ToolProvider:   provider,
		InitialPrompt:  "x",
	})
	require.ErrorIs(t, err, boom)
}

func TestRun_CanceledContext(t *testing.T) {
	provider, _ := newProvider(t)
	client := mock.New("mock-model", mock.Reply("never"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := toolloop.New(client, nil).Run(ctx, &toolloop.Config{
		ContextManager: contextmgr.NewContextManager(),
		ToolProvider:   provider,
		InitialPrompt:  "x",
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, client.Calls())
}

func TestRun_RequiresContextAndTools(t *testing.T) {
	tl := toolloop.New(mock.New("m"), nil)
	_, err := tl.Run(context.Background(), &toolloop.Config{})
	require.Error(t, err)

	_, err = tl.Run(context.Background(), &toolloop.Config{ContextManager: contextmgr.NewContextManager()})
	require.Error(t, err)
}
