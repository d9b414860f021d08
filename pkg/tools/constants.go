package tools

// Tool names. These are stable and part of the model-facing contract.
const (
	ToolWriteFile           = "write_file"
	ToolReadFile            = "read_file"
	ToolListFiles           = "list_files"
	ToolGetCurrentDirectory = "get_current_directory"
)

// CoderTools is the fixed capability set for a coder step, in documentation order.
//
//nolint:gochecknoglobals // fixed capability table
var CoderTools = []string{
	ToolReadFile,
	ToolWriteFile,
	ToolListFiles,
	ToolGetCurrentDirectory,
}
