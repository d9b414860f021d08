package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/architect"
	"appforge/pkg/config"
	"appforge/pkg/eventlog"
	"appforge/pkg/llm"
	"appforge/pkg/llm/mock"
	"appforge/pkg/orchestrator"
	"appforge/pkg/planner"
	"appforge/pkg/tools"
)

var fileToModify = regexp.MustCompile(`File to modify: (\S+)`)

func helloModel(req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if len(req.Tools) == 1 {
		switch req.Tools[0].Name {
		case planner.SubmitPlanTool:
			return llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "p", Name: planner.SubmitPlanTool, Parameters: map[string]any{
				"name": "Hello", "description": "a greeting page", "techstack": "html",
				"files": []any{map[string]any{"path": "index.html", "purpose": "page"}},
			}}}}, nil
		case architect.SubmitTaskPlanTool:
			return llm.CompletionResponse{ToolCalls: []llm.ToolCall{{ID: "a", Name: architect.SubmitTaskPlanTool, Parameters: map[string]any{
				"implementation_steps": []any{map[string]any{"filepath": "index.html", "task_description": "greet"}},
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
		"path": m[1], "content": "<h1>Hello</h1>",
	}}}}, nil
}

func testApp(t *testing.T, stdin string, client llm.LLMClient) (*app, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	for _, name := range []string{config.EnvProvider, config.EnvModel, config.EnvSandboxRoot, config.EnvMaxInvocations} {
		t.Setenv(name, "")
	}
	out := &bytes.Buffer{}
	return &app{
		stdin:      strings.NewReader(stdin),
		stdout:     out,
		isTerminal: func() bool { return false },
		client:     client,
	}, out
}

func execute(a *app, args ...string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	return cmd.Execute()
}

func TestVersionCommand(t *testing.T) {
	a, out := testApp(t, "", nil)
	require.NoError(t, execute(a, "version"))
	assert.Contains(t, out.String(), "appforge dev")
}

func TestRunCommand(t *testing.T) {
	root := t.TempDir()
	metricsPath := filepath.Join(t.TempDir(), "metrics.prom")
	eventDir := filepath.Join(t.TempDir(), "events")
	a, out := testApp(t, "", mock.NewWithHandler("mock", helloModel))

	err := execute(a, "run", "--sandbox", root, "--metrics-out", metricsPath, "--event-log", eventDir, "Build", "a", "hello", "page")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello</h1>", string(data))

	text := out.String()
	assert.Contains(t, text, "[1] plan")
	assert.Contains(t, text, "coder step 1/1")
	assert.Contains(t, text, "Plan:    Hello - a greeting page")
	assert.Contains(t, text, "Steps:   1/1 completed")
	assert.Contains(t, text, "- index.html")

	logs, err := eventlog.ListLogFiles(eventDir)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	records, err := eventlog.ReadRecords(logs[0])
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, orchestrator.NodeCoder, records[3].Node)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "appforge_node_invocations_total")
	assert.Contains(t, string(prom), "appforge_llm_requests_total")
}

func TestRunCommand_CeilingExceeded(t *testing.T) {
	a, out := testApp(t, "Build a hello page", mock.NewWithHandler("mock", helloModel))

	err := execute(a, "run", "--sandbox", t.TempDir(), "--max-invocations", "2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, orchestrator.ErrCeilingExceeded))
	assert.Contains(t, out.String(), "raise --max-invocations")
}

func TestRunCommand_InvalidFlags(t *testing.T) {
	a, _ := testApp(t, "", mock.NewWithHandler("mock", helloModel))
	err := execute(a, "run", "--provider", "groq", "hello")
	require.Error(t, err)
}

func TestReadPrompt(t *testing.T) {
	prompt, err := readPrompt([]string{" Build ", "a page "}, strings.NewReader("ignored"), &bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Equal(t, "Build  a page", prompt)

	prompt, err = readPrompt(nil, strings.NewReader("A todo list\nwith storage\n"), &bytes.Buffer{}, false)
	require.NoError(t, err)
	assert.Equal(t, "A todo list\nwith storage", prompt)

	out := &bytes.Buffer{}
	prompt, err = readPrompt(nil, strings.NewReader("A clock\nsecond line"), out, true)
	require.NoError(t, err)
	assert.Equal(t, "A clock", prompt)
	assert.Contains(t, out.String(), "Describe the app to build")

	_, err = readPrompt(nil, strings.NewReader("  \n"), &bytes.Buffer{}, false)
	require.Error(t, err)
}

func TestRunOptionsApply(t *testing.T) {
	cfg := config.Default()
	opts := &runOptions{provider: "Ollama", sandboxRoot: "site", maxInvocations: 7}
	require.NoError(t, opts.apply(cfg))
	assert.Equal(t, config.ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, config.DefaultModels[config.ProviderOllama], cfg.LLM.Model)
	assert.Equal(t, config.DefaultOllamaHost, cfg.LLM.BaseURL)
	assert.Equal(t, "site", cfg.Sandbox.Root)
	assert.Equal(t, 7, cfg.Orchestrator.MaxInvocations)

	require.Error(t, (&runOptions{maxInvocations: -3}).apply(config.Default()))
}
