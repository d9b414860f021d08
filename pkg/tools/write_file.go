package tools

import (
	"context"

	"appforge/pkg/sandbox"
)

// WriteFileTool writes text into the sandbox, creating parent directories.
type WriteFileTool struct {
	store *sandbox.Store
}

// NewWriteFileTool creates a new write_file tool.
func NewWriteFileTool(store *sandbox.Store) *WriteFileTool {
	return &WriteFileTool{store: store}
}

// Name returns the tool name.
func (t *WriteFileTool) Name() string {
	return ToolWriteFile
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *WriteFileTool) PromptDocumentation() string {
	return `- **write_file** - Write text to a file inside the project root, replacing any existing content
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
    - content (string, REQUIRED): the complete new file content
  - Parent directories are created as needed
  - Returns the absolute path that was written`
}

// Definition returns the tool definition for LLM.
func (t *WriteFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolWriteFile,
		Description: "Write the complete content of a file inside the project root. Overwrites existing files and creates parent directories. Returns the absolute path written.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path relative to the project root",
				},
				"content": {
					Type:        "string",
					Description: "Complete file content",
				},
			},
			Required: []string{"path", "content"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *WriteFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path", false)
	if err != nil {
		return nil, err
	}
	content, err := stringArg(args, "content", true)
	if err != nil {
		return nil, err
	}

	abs, err := t.store.Write(path, content)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: abs}, nil
}
