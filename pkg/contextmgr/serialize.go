package contextmgr

import (
	"encoding/json"
	"fmt"
)

// SerializedContext is the JSON form of a ContextManager, used for debug
// transcripts of a step's conversation.
type SerializedContext struct {
	Messages           []Message    `json:"messages"`
	UserBuffer         []string     `json:"user_buffer,omitempty"`
	PendingToolResults []ToolResult `json:"pending_tool_results,omitempty"`
}

// Serialize converts the full state, including buffered content, to JSON.
func (cm *ContextManager) Serialize() ([]byte, error) {
	sc := SerializedContext{
		Messages:           cm.GetMessages(),
		UserBuffer:         cm.userBuffer,
		PendingToolResults: cm.pendingToolResults,
	}
	data, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}
	return data, nil
}

// Deserialize replaces all state with the JSON produced by Serialize.
func (cm *ContextManager) Deserialize(data []byte) error {
	var sc SerializedContext
	if err := json.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("failed to unmarshal context: %w", err)
	}
	cm.messages = sc.Messages
	if cm.messages == nil {
		cm.messages = make([]Message, 0)
	}
	cm.userBuffer = sc.UserBuffer
	cm.pendingToolResults = sc.PendingToolResults
	return nil
}
