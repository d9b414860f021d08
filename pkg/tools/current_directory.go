package tools

import (
	"context"

	"appforge/pkg/sandbox"
)

// CurrentDirectoryTool reports the absolute project root.
type CurrentDirectoryTool struct {
	store *sandbox.Store
}

// NewCurrentDirectoryTool creates a new get_current_directory tool.
func NewCurrentDirectoryTool(store *sandbox.Store) *CurrentDirectoryTool {
	return &CurrentDirectoryTool{store: store}
}

// Name returns the tool name.
func (t *CurrentDirectoryTool) Name() string {
	return ToolGetCurrentDirectory
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *CurrentDirectoryTool) PromptDocumentation() string {
	return `- **get_current_directory** - Return the absolute path of the project root
  - No parameters`
}

// Definition returns the tool definition for LLM.
func (t *CurrentDirectoryTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolGetCurrentDirectory,
		Description: "Return the absolute path of the project root.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *CurrentDirectoryTool) Exec(_ context.Context, _ map[string]any) (*ExecResult, error) {
	root, err := t.store.Root()
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: root}, nil
}
