// Package contextmgr holds the per-step conversation a sub-agent builds up with
// the model: system and user prompts, assistant turns with tool calls, and the
// tool results answering them.
package contextmgr

import (
	"fmt"
	"sort"
	"strings"

	"appforge/pkg/tokens"
)

// ToolCall is a tool invocation recorded on an assistant message.
type ToolCall struct {
	Parameters map[string]any `json:"parameters,omitempty"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// ToolResult answers one ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message represents a single message in the conversation context.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ContextManager accumulates a conversation. User content and tool results are
// buffered and only become a message on FlushUserBuffer, so every batch of tool
// results lands in a single user turn that directly follows the assistant turn
// that requested them.
type ContextManager struct {
	messages           []Message
	userBuffer         []string
	pendingToolResults []ToolResult
	counter            *tokens.Counter
}

// NewContextManager creates an empty context manager.
func NewContextManager() *ContextManager {
	return &ContextManager{
		messages: make([]Message, 0),
	}
}

// NewContextManagerWithCounter creates a context manager that counts tokens with counter.
func NewContextManagerWithCounter(counter *tokens.Counter) *ContextManager {
	cm := NewContextManager()
	cm.counter = counter
	return cm
}

// SetSystemPrompt replaces any existing system message with content.
func (cm *ContextManager) SetSystemPrompt(content string) {
	content = strings.TrimSpace(content)
	if len(cm.messages) > 0 && cm.messages[0].Role == "system" {
		cm.messages[0].Content = content
		return
	}
	cm.messages = append([]Message{{Role: "system", Content: content}}, cm.messages...)
}

// AddMessage stores a role/content pair. User content is buffered until the
// next flush; other roles are appended directly.
func (cm *ContextManager) AddMessage(role, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	switch role {
	case "user":
		cm.userBuffer = append(cm.userBuffer, content)
	case "system":
		cm.SetSystemPrompt(content)
	default:
		cm.messages = append(cm.messages, Message{Role: role, Content: content})
	}
}

// AddAssistantMessage appends an assistant turn without tool calls.
func (cm *ContextManager) AddAssistantMessage(content string) {
	cm.messages = append(cm.messages, Message{Role: "assistant", Content: strings.TrimSpace(content)})
}

// AddAssistantMessageWithTools appends an assistant turn carrying tool calls.
func (cm *ContextManager) AddAssistantMessageWithTools(content string, calls []ToolCall) {
	cm.messages = append(cm.messages, Message{
		Role:      "assistant",
		Content:   strings.TrimSpace(content),
		ToolCalls: append([]ToolCall(nil), calls...),
	})
}

// AddToolResult buffers the result for toolCallID until the next flush.
func (cm *ContextManager) AddToolResult(toolCallID, content string, isError bool) {
	cm.pendingToolResults = append(cm.pendingToolResults, ToolResult{
		ToolCallID: toolCallID,
		Content:    content,
		IsError:    isError,
	})
}

// FlushUserBuffer turns buffered tool results and user content into one user
// message. It is a no-op when nothing is buffered.
func (cm *ContextManager) FlushUserBuffer() error {
	if len(cm.userBuffer) == 0 && len(cm.pendingToolResults) == 0 {
		return nil
	}
	if len(cm.pendingToolResults) > 0 {
		if err := cm.checkToolResults(); err != nil {
			return err
		}
	}

	cm.messages = append(cm.messages, Message{
		Role:        "user",
		Content:     strings.Join(cm.userBuffer, "\n\n"),
		ToolResults: cm.pendingToolResults,
	})
	cm.userBuffer = nil
	cm.pendingToolResults = nil
	return nil
}

// checkToolResults verifies every pending result answers a call on the last assistant turn.
func (cm *ContextManager) checkToolResults() error {
	var last *Message
	for i := len(cm.messages) - 1; i >= 0; i-- {
		if cm.messages[i].Role == "assistant" {
			last = &cm.messages[i]
			break
		}
	}
	if last == nil {
		return fmt.Errorf("tool results without a preceding assistant message")
	}

	ids := make(map[string]bool, len(last.ToolCalls))
	for i := range last.ToolCalls {
		ids[last.ToolCalls[i].ID] = true
	}
	for i := range cm.pendingToolResults {
		if !ids[cm.pendingToolResults[i].ToolCallID] {
			return fmt.Errorf("tool result %q does not match any pending tool call", cm.pendingToolResults[i].ToolCallID)
		}
	}
	return nil
}

// GetMessages returns a copy of all flushed messages.
func (cm *ContextManager) GetMessages() []Message {
	result := make([]Message, len(cm.messages))
	copy(result, cm.messages)
	return result
}

// GetMessageCount returns the number of flushed messages.
func (cm *ContextManager) GetMessageCount() int {
	return len(cm.messages)
}

// Reset removes all messages and buffered content.
func (cm *ContextManager) Reset() {
	cm.messages = cm.messages[:0]
	cm.userBuffer = nil
	cm.pendingToolResults = nil
}

// CountTokens estimates the token size of the flushed conversation.
func (cm *ContextManager) CountTokens() int {
	total := 0
	for i := range cm.messages {
		msg := &cm.messages[i]
		total += cm.count(msg.Content)
		for j := range msg.ToolCalls {
			total += cm.count(msg.ToolCalls[j].Name) + cm.count(fmt.Sprint(msg.ToolCalls[j].Parameters))
		}
		for j := range msg.ToolResults {
			total += cm.count(msg.ToolResults[j].Content)
		}
	}
	return total
}

func (cm *ContextManager) count(text string) int {
	if cm.counter != nil {
		return cm.counter.Count(text)
	}
	return tokens.Count(text)
}

// GetContextSummary returns a brief summary of the context state.
func (cm *ContextManager) GetContextSummary() string {
	if len(cm.messages) == 0 {
		return "Empty context"
	}

	roleCounts := make(map[string]int)
	for i := range cm.messages {
		roleCounts[cm.messages[i].Role]++
	}
	roles := make([]string, 0, len(roleCounts))
	for role := range roleCounts {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	breakdown := make([]string, 0, len(roles))
	for _, role := range roles {
		breakdown = append(breakdown, fmt.Sprintf("%s: %d", role, roleCounts[role]))
	}
	return fmt.Sprintf("%d messages (%d tokens) - %s",
		len(cm.messages), cm.CountTokens(), strings.Join(breakdown, ", "))
}
