// Package templates provides the embedded prompt templates for each stage.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TemplateData holds the data for template rendering. Each template uses a subset.
type TemplateData struct {
	UserPrompt        string `json:"user_prompt,omitempty"`
	Plan              string `json:"plan,omitempty"`
	ToolName          string `json:"tool_name,omitempty"`
	ToolDocumentation string `json:"tool_documentation,omitempty"`
	TaskDescription   string `json:"task_description,omitempty"`
	Filepath          string `json:"filepath,omitempty"`
	CurrentContent    string `json:"current_content,omitempty"`
}

// StateTemplate names an embedded template.
type StateTemplate string

const (
	// PlannerTemplate turns the user request into a Plan.
	PlannerTemplate StateTemplate = "planner.tpl.md"
	// ArchitectTemplate turns a Plan into a TaskPlan.
	ArchitectTemplate StateTemplate = "architect.tpl.md"
	// CoderSystemTemplate is the coder sub-agent's system prompt.
	CoderSystemTemplate StateTemplate = "coder_system.tpl.md"
	// CoderTaskTemplate is the per-step instruction bundle.
	CoderTaskTemplate StateTemplate = "coder_task.tpl.md"
)

// AllTemplates lists every embedded template.
//
//nolint:gochecknoglobals // fixed template table
var AllTemplates = []StateTemplate{
	PlannerTemplate,
	ArchitectTemplate,
	CoderSystemTemplate,
	CoderTaskTemplate,
}

// Renderer handles template rendering.
type Renderer struct {
	templates map[StateTemplate]*template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		templates: make(map[StateTemplate]*template.Template, len(AllTemplates)),
	}

	for _, name := range AllTemplates {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}

		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

//nolint:gochecknoglobals // lazily built shared renderer
var (
	defaultRenderer    *Renderer
	defaultRendererErr error
	defaultOnce        sync.Once
)

// Default returns a process-wide renderer built on first use.
func Default() (*Renderer, error) {
	defaultOnce.Do(func() {
		defaultRenderer, defaultRendererErr = NewRenderer()
	})
	return defaultRenderer, defaultRendererErr
}

// Render renders the specified template with the given data.
func (r *Renderer) Render(templateName StateTemplate, data *TemplateData) (string, error) {
	tmpl, exists := r.templates[templateName]
	if !exists {
		return "", fmt.Errorf("template %s not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", templateName, err)
	}

	return buf.String(), nil
}

// Render renders templateName with the default renderer.
func Render(templateName StateTemplate, data *TemplateData) (string, error) {
	r, err := Default()
	if err != nil {
		return "", err
	}
	return r.Render(templateName, data)
}
