package tools

import (
	"context"

	"appforge/pkg/sandbox"
)

// ListFilesTool lists every file in the sandbox.
type ListFilesTool struct {
	store *sandbox.Store
}

// NewListFilesTool creates a new list_files tool.
func NewListFilesTool(store *sandbox.Store) *ListFilesTool {
	return &ListFilesTool{store: store}
}

// Name returns the tool name.
func (t *ListFilesTool) Name() string {
	return ToolListFiles
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ListFilesTool) PromptDocumentation() string {
	return `- **list_files** - List every file in the project
  - No parameters
  - Returns sorted relative paths, one per line`
}

// Definition returns the tool definition for LLM.
func (t *ListFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolListFiles,
		Description: "List all files in the project root as sorted relative paths, one per line.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: map[string]Property{},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ListFilesTool) Exec(_ context.Context, _ map[string]any) (*ExecResult, error) {
	listing, err := t.store.ListString()
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: listing}, nil
}
