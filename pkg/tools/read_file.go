package tools

import (
	"context"

	"appforge/pkg/sandbox"
)

// ReadFileTool reads a file from the sandbox.
type ReadFileTool struct {
	store *sandbox.Store
}

// NewReadFileTool creates a new read_file tool.
func NewReadFileTool(store *sandbox.Store) *ReadFileTool {
	return &ReadFileTool{store: store}
}

// Name returns the tool name.
func (t *ReadFileTool) Name() string {
	return ToolReadFile
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ReadFileTool) PromptDocumentation() string {
	return `- **read_file** - Read a file inside the project root
  - Parameters:
    - path (string, REQUIRED): path relative to the project root
  - Returns an empty result if the file does not exist yet
  - Returns ` + sandbox.BinarySentinel + ` for files that are not text`
}

// Definition returns the tool definition for LLM.
func (t *ReadFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolReadFile,
		Description: "Read the content of a file inside the project root. Returns an empty string if the file does not exist.",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"path": {
					Type:        "string",
					Description: "Path relative to the project root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// Exec executes the tool with the given arguments.
func (t *ReadFileTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	path, err := stringArg(args, "path", false)
	if err != nil {
		return nil, err
	}

	content, err := t.store.Read(path)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Content: content}, nil
}
