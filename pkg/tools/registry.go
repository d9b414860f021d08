package tools

import (
	"fmt"
	"strings"
	"sync"

	"appforge/pkg/sandbox"
)

// ToolFactory creates a tool bound to one run's sandbox.
type ToolFactory func(store *sandbox.Store) Tool

// toolDescriptor contains the factory and metadata for a tool.
type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// capabilities is the fixed table of tools, keyed by name.
//
//nolint:gochecknoglobals // fixed capability table
var capabilities = map[string]toolDescriptor{}

func register(factory ToolFactory) {
	def := factory(nil).Definition()
	capabilities[def.Name] = toolDescriptor{
		meta: ToolMeta{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		},
		factory: factory,
	}
}

func init() { //nolint:gochecknoinits // populate the fixed capability table
	register(func(s *sandbox.Store) Tool { return NewWriteFileTool(s) })
	register(func(s *sandbox.Store) Tool { return NewReadFileTool(s) })
	register(func(s *sandbox.Store) Tool { return NewListFilesTool(s) })
	register(func(s *sandbox.Store) Tool { return NewCurrentDirectoryTool(s) })
}

// ToolProvider creates and caches tool instances for one sandbox.
type ToolProvider struct {
	store   *sandbox.Store
	tools   map[string]Tool
	allowed []string
	mu      sync.Mutex
}

// NewProvider creates a provider exposing allowedTools, in the given order.
// Unknown names are rejected.
func NewProvider(store *sandbox.Store, allowedTools []string) (*ToolProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("tool provider requires a sandbox store")
	}
	for _, name := range allowedTools {
		if _, ok := capabilities[name]; !ok {
			return nil, fmt.Errorf("tool '%s' not registered", name)
		}
	}
	return &ToolProvider{
		store:   store,
		tools:   make(map[string]Tool),
		allowed: append([]string(nil), allowedTools...),
	}, nil
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isAllowed(name) {
		return nil, fmt.Errorf("tool '%s' not allowed in this context", name)
	}
	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	tool := capabilities[name].factory(p.store)
	p.tools[name] = tool
	return tool, nil
}

func (p *ToolProvider) isAllowed(name string) bool {
	for _, n := range p.allowed {
		if n == name {
			return true
		}
	}
	return false
}

// List returns metadata for all allowed tools.
func (p *ToolProvider) List() []ToolMeta {
	result := make([]ToolMeta, 0, len(p.allowed))
	for _, name := range p.allowed {
		result = append(result, capabilities[name].meta)
	}
	return result
}

// GenerateToolDocumentation renders prompt documentation for the allowed tools.
func (p *ToolProvider) GenerateToolDocumentation() string {
	if len(p.allowed) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, name := range p.allowed {
		tool, err := p.Get(name)
		if err != nil {
			continue
		}
		doc.WriteString(tool.PromptDocumentation())
		doc.WriteString("\n")
	}
	return doc.String()
}

// GenerateToolDocumentationForTools renders a one-line summary per tool.
func GenerateToolDocumentationForTools(tools []ToolMeta) string {
	if len(tools) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for i := range tools {
		fmt.Fprintf(&doc, "- **%s** - %s\n", tools[i].Name, tools[i].Description)
	}
	return doc.String()
}
