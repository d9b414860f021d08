package openai

import (
	"encoding/json"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appforge/pkg/llm"
	"appforge/pkg/llm/llmerrors"
	"appforge/pkg/tools"
)

func TestBuildMessages_ToolConversation(t *testing.T) {
	msgs, err := buildMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("system"),
		llm.NewUserMessage("make index.html"),
		{
			Role:      llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "write_file", Parameters: map[string]any{"path": "index.html"}}},
		},
		{
			Role:        llm.RoleUser,
			ToolResults: []llm.ToolResult{{ToolCallID: "call_1", Content: "path must be inside project root", IsError: true}},
		},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)

	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.JSONEq(t, `{"path":"index.html"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "call_1", msgs[3].OfTool.ToolCallID)
}

func TestBuildMessages_Empty(t *testing.T) {
	_, err := buildMessages(nil)
	require.Error(t, err)
}

func TestBuildTools(t *testing.T) {
	out := buildTools([]tools.ToolDefinition{{
		Name:        "list_files",
		Description: "List files",
		InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{}},
	}})
	require.Len(t, out, 1)
	assert.Equal(t, "list_files", out[0].Function.Name)
	assert.Equal(t, "object", out[0].Function.Parameters["type"])
}

func TestConvertResponse(t *testing.T) {
	var resp openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "x",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_9", "type": "function", "function": {"name": "read_file", "arguments": "{\"path\":\"a.txt\"}"}}]
			}
		}],
		"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
	}`), &resp))

	out, err := convertResponse(&resp)
	require.NoError(t, err)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "call_9", out.ToolCalls[0].ID)
	assert.Equal(t, "a.txt", out.ToolCalls[0].Parameters["path"])
	assert.Equal(t, 20, out.InputTokens)
	assert.Equal(t, "tool_calls", out.StopReason)
}

func TestConvertResponse_EmptyIsClassified(t *testing.T) {
	var resp openai.ChatCompletion
	require.NoError(t, json.Unmarshal([]byte(`{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":""}}]}`), &resp))

	_, err := convertResponse(&resp)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse))
}
