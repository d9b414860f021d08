// Package tools defines the capability table exposed to the coder's sub-agent:
// four file operations over a sandbox.Store, their model-facing definitions, and
// the documentation rendered from them.
package tools

import "context"

// Property describes one tool argument.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
}

// InputSchema is the JSON Schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is what a model sees when choosing a tool.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// ToolMeta contains metadata about a tool for documentation and discovery.
type ToolMeta struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// ExecResult is the text handed back to the model as the tool result.
type ExecResult struct {
	Content string
}

// Tool is a single capability the sub-agent may invoke.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	PromptDocumentation() string
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToMap renders the property as a JSON Schema object.
func (p *Property) ToMap() map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	if p.Items != nil {
		m["items"] = p.Items.ToMap()
	}
	if len(p.Properties) > 0 {
		m["properties"] = propertiesToMap(p.Properties)
	}
	if len(p.Required) > 0 {
		m["required"] = p.Required
	}
	return m
}

// PropertiesMap renders the schema's properties as JSON Schema objects.
func (s *InputSchema) PropertiesMap() map[string]any {
	return propertiesToMap(s.Properties)
}

// ToMap renders the whole schema as a JSON Schema object.
func (s *InputSchema) ToMap() map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	m := map[string]any{
		"type":       typ,
		"properties": s.PropertiesMap(),
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	return m
}

func propertiesToMap(props map[string]Property) map[string]any {
	out := make(map[string]any, len(props))
	for name := range props {
		p := props[name]
		out[name] = p.ToMap()
	}
	return out
}
