// Package anthropic implements llm.LLMClient over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"appforge/pkg/llm"
	"appforge/pkg/llm/llmerrors"
	"appforge/pkg/tools"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// ClaudeClient wraps the Anthropic API client to implement llm.LLMClient.
type ClaudeClient struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewClaudeClient creates a raw client; middleware is applied by the caller.
func NewClaudeClient(apiKey, model string, opts ...option.RequestOption) *ClaudeClient {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &ClaudeClient{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(model),
	}
}

// turn is one alternating message after merging.
type turn struct {
	role   llm.CompletionRole
	blocks []anthropic.ContentBlockParamUnion
}

// buildMessages extracts system messages and merges the rest into strict
// user/assistant alternation, which the Messages API requires.
func buildMessages(messages []llm.CompletionMessage) (string, []anthropic.MessageParam, error) {
	var systemParts []string
	var turns []turn

	for i := range messages {
		msg := &messages[i]
		if msg.Role == llm.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}

		role := llm.RoleUser
		var blocks []anthropic.ContentBlockParamUnion
		if msg.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for j := range msg.ToolCalls {
				tc := &msg.ToolCalls[j]
				input := tc.Parameters
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
		} else {
			// Tool results must lead the user turn that answers a tool_use.
			for j := range msg.ToolResults {
				tr := &msg.ToolResults[j]
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, tr.IsError))
			}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].blocks = append(turns[n-1].blocks, blocks...)
			continue
		}
		turns = append(turns, turn{role: role, blocks: blocks})
	}

	if len(turns) == 0 {
		return "", nil, fmt.Errorf("must have at least one non-system message")
	}
	if turns[0].role != llm.RoleUser {
		return "", nil, fmt.Errorf("first message must be user role, got: %s", turns[0].role)
	}
	if turns[len(turns)-1].role != llm.RoleUser {
		return "", nil, fmt.Errorf("last message must be user role, got: %s", turns[len(turns)-1].role)
	}

	params := make([]anthropic.MessageParam, 0, len(turns))
	for i := range turns {
		if turns[i].role == llm.RoleAssistant {
			params = append(params, anthropic.NewAssistantMessage(turns[i].blocks...))
		} else {
			params = append(params, anthropic.NewUserMessage(turns[i].blocks...))
		}
	}
	return strings.Join(systemParts, "\n\n"), params, nil
}

func buildTools(defs []tools.ToolDefinition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		schema := anthropic.ToolInputSchemaParam{
			Properties: def.InputSchema.PropertiesMap(),
			Required:   def.InputSchema.Required,
		}
		u := anthropic.ToolUnionParamOfTool(schema, def.Name)
		if def.Description != "" {
			u.OfTool.Description = anthropic.String(def.Description)
		}
		out = append(out, u)
	}
	return out
}

func toolChoice(choice string) anthropic.ToolChoiceUnionParam {
	if choice == llm.ToolChoiceAny {
		return anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	}
	return anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *ClaudeClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	systemPrompt, messages, err := buildMessages(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, fmt.Sprintf("message alternation error: %v", err))
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.MaxTokens),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(in.Tools) > 0 {
		params.Tools = buildTools(in.Tools)
		params.ToolChoice = toolChoice(in.ToolChoice)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	return convertResponse(resp)
}

func convertResponse(resp *anthropic.Message) (llm.CompletionResponse, error) {
	var text strings.Builder
	var toolCalls []llm.ToolCall

	for i := range resp.Content {
		block := &resp.Content[i]
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			var params map[string]any
			if len(toolUse.Input) > 0 {
				if err := json.Unmarshal(toolUse.Input, &params); err != nil {
					return llm.CompletionResponse{}, fmt.Errorf("failed to parse tool input: %w", err)
				}
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:         toolUse.ID,
				Name:       toolUse.Name,
				Parameters: params,
			})
		}
	}

	return llm.CompletionResponse{
		Content:      text.String(),
		ToolCalls:    toolCalls,
		StopReason:   string(resp.StopReason),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// Stream implements llm.LLMClient.
//
//nolint:gocritic // CompletionRequest passed by value to match interface
func (c *ClaudeClient) Stream(ctx context.Context, in llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	return llm.StreamFromComplete(ctx, c, in), nil
}

// GetModelName returns the model name for this client.
func (c *ClaudeClient) GetModelName() string {
	return string(c.model)
}

func classifyError(err error) *llmerrors.Error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return llmerrors.Classify(err, apiErr.StatusCode)
	}
	return llmerrors.Classify(err, 0)
}
