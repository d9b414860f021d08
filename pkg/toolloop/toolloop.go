// Package toolloop runs the model/tool-call cycle used by the coder sub-agent:
// send the conversation, execute every requested tool, feed the results back,
// and stop when the model answers without tool calls.
package toolloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appforge/pkg/contextmgr"
	"appforge/pkg/llm"
	"appforge/pkg/logx"
	"appforge/pkg/tools"
)

// DefaultMaxIterations bounds the model calls made for one step.
const DefaultMaxIterations = 50

// ErrMaxIterations is returned when the model keeps requesting tools past MaxIterations.
var ErrMaxIterations = errors.New("maximum tool iterations exceeded")

// ToolProvider is what the loop needs from a tool provider.
type ToolProvider interface {
	Get(name string) (tools.Tool, error)
	List() []tools.ToolMeta
}

// ToolLoop manages LLM interactions with tool calling.
type ToolLoop struct {
	llmClient llm.LLMClient
	logger    *logx.Logger
}

// New creates a new ToolLoop instance.
func New(llmClient llm.LLMClient, logger *logx.Logger) *ToolLoop {
	if logger == nil {
		logger = logx.NewLogger("toolloop")
	}
	return &ToolLoop{
		llmClient: llmClient,
		logger:    logger,
	}
}

// Config defines how the tool loop behaves.
//
//nolint:govet // fieldalignment: struct fields ordered for clarity over memory alignment
type Config struct {
	// ContextManager is owned by the caller and holds the conversation.
	ContextManager *contextmgr.ContextManager

	ToolProvider ToolProvider

	// SystemPrompt and InitialPrompt are added before the first call when set.
	SystemPrompt  string
	InitialPrompt string

	MaxIterations int
	MaxTokens     int
	Temperature   float32

	// DebugLogging logs every message sent to the model.
	DebugLogging bool
}

// Result summarizes a finished loop.
type Result struct {
	// Content is the model's final text answer.
	Content    string
	Iterations int
	ToolCalls  int
}

// Run executes the loop until the model stops requesting tools.
func (tl *ToolLoop) Run(ctx context.Context, cfg *Config) (Result, error) {
	if cfg.ContextManager == nil {
		return Result{}, fmt.Errorf("ContextManager is required")
	}
	if cfg.ToolProvider == nil {
		return Result{}, fmt.Errorf("ToolProvider is required")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}

	if cfg.SystemPrompt != "" {
		cfg.ContextManager.SetSystemPrompt(cfg.SystemPrompt)
	}
	if cfg.InitialPrompt != "" {
		cfg.ContextManager.AddMessage("user", cfg.InitialPrompt)
	}

	toolsList := cfg.ToolProvider.List()
	toolDefs := make([]tools.ToolDefinition, len(toolsList))
	for i := range toolsList {
		toolDefs[i] = tools.ToolDefinition{
			Name:        toolsList[i].Name,
			Description: toolsList[i].Description,
			InputSchema: toolsList[i].InputSchema,
		}
	}

	var result Result
	for iteration := 0; iteration < cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("tool loop interrupted: %w", err)
		}
		result.Iterations = iteration + 1

		if err := cfg.ContextManager.FlushUserBuffer(); err != nil {
			return result, fmt.Errorf("failed to flush user buffer: %w", err)
		}
		messages := buildMessages(cfg.ContextManager)

		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			ToolChoice:  llm.ToolChoiceAuto,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}

		tl.logger.Debug("Starting LLM call to model '%s' with %d messages, %d tools (iteration %d)",
			tl.llmClient.GetModelName(), len(messages), len(toolDefs), iteration+1)
		if cfg.DebugLogging {
			tl.logMessages(ctx, messages)
		}

		start := time.Now()
		resp, err := tl.llmClient.Complete(ctx, req)
		duration := time.Since(start)
		if err != nil {
			tl.logger.Error("LLM call failed after %.3gs: %v", duration.Seconds(), err)
			return result, fmt.Errorf("LLM completion failed: %w", err)
		}
		tl.logger.Debug("LLM call completed in %.3gs, response length: %d chars, tool calls: %d",
			duration.Seconds(), len(resp.Content), len(resp.ToolCalls))

		if len(resp.ToolCalls) == 0 {
			cfg.ContextManager.AddAssistantMessage(resp.Content)
			result.Content = resp.Content
			return result, nil
		}

		calls := make([]contextmgr.ToolCall, len(resp.ToolCalls))
		for i := range resp.ToolCalls {
			calls[i] = contextmgr.ToolCall{
				ID:         resp.ToolCalls[i].ID,
				Name:       resp.ToolCalls[i].Name,
				Parameters: resp.ToolCalls[i].Parameters,
			}
		}
		cfg.ContextManager.AddAssistantMessageWithTools(resp.Content, calls)

		// Every tool call must be answered before the next request.
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			content, isError := tl.execute(ctx, cfg.ToolProvider, call)
			cfg.ContextManager.AddToolResult(call.ID, content, isError)
			result.ToolCalls++
		}
	}

	tl.logger.Warn("Maximum tool iterations (%d) reached", cfg.MaxIterations)
	return result, fmt.Errorf("%w: %d", ErrMaxIterations, cfg.MaxIterations)
}

// execute runs one tool call. Failures become error results for the model.
func (tl *ToolLoop) execute(ctx context.Context, provider ToolProvider, call *llm.ToolCall) (string, bool) {
	tool, err := provider.Get(call.Name)
	if err != nil {
		tl.logger.Warn("Unknown tool %s requested: %v", call.Name, err)
		return formatToolResult(nil, err)
	}

	start := time.Now()
	res, err := tool.Exec(ctx, call.Parameters)
	if err != nil {
		tl.logger.Warn("Tool %s failed after %.3fs: %v", call.Name, time.Since(start).Seconds(), err)
	} else {
		logx.Debug(ctx, "toolloop", "tool %s completed in %.3fs", call.Name, time.Since(start).Seconds())
	}
	return formatToolResult(res, err)
}

// formatToolResult converts tool output to the text given back to the model.
func formatToolResult(res *tools.ExecResult, err error) (string, bool) {
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	if res == nil {
		return "", false
	}
	return res.Content, false
}

// buildMessages converts context manager messages to llm.CompletionMessage format.
func buildMessages(cm *contextmgr.ContextManager) []llm.CompletionMessage {
	contextMessages := cm.GetMessages()

	messages := make([]llm.CompletionMessage, 0, len(contextMessages))
	for i := range contextMessages {
		msg := &contextMessages[i]

		var calls []llm.ToolCall
		if len(msg.ToolCalls) > 0 {
			calls = make([]llm.ToolCall, len(msg.ToolCalls))
			for j := range msg.ToolCalls {
				calls[j] = llm.ToolCall{
					ID:         msg.ToolCalls[j].ID,
					Name:       msg.ToolCalls[j].Name,
					Parameters: msg.ToolCalls[j].Parameters,
				}
			}
		}

		var results []llm.ToolResult
		if len(msg.ToolResults) > 0 {
			results = make([]llm.ToolResult, len(msg.ToolResults))
			for j := range msg.ToolResults {
				results[j] = llm.ToolResult{
					ToolCallID: msg.ToolResults[j].ToolCallID,
					Content:    msg.ToolResults[j].Content,
					IsError:    msg.ToolResults[j].IsError,
				}
			}
		}

		messages = append(messages, llm.CompletionMessage{
			Role:        llm.CompletionRole(msg.Role),
			Content:     msg.Content,
			ToolCalls:   calls,
			ToolResults: results,
		})
	}
	return messages
}

// logMessages logs detailed message information for debugging.
func (tl *ToolLoop) logMessages(ctx context.Context, messages []llm.CompletionMessage) {
	for i := range messages {
		msg := &messages[i]
		logx.Debug(ctx, "toolloop", "[%d] Role: %s, Content: %q, ToolCalls: %d, ToolResults: %d",
			i, msg.Role, preview(msg.Content, 100), len(msg.ToolCalls), len(msg.ToolResults))
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			logx.Debug(ctx, "toolloop", "    ToolCall[%d] ID=%s Name=%s", j, tc.ID, tc.Name)
		}
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			logx.Debug(ctx, "toolloop", "    ToolResult[%d] ID=%s IsError=%v Content=%q",
				j, tr.ToolCallID, tr.IsError, preview(tr.Content, 200))
		}
	}
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
