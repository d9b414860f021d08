// Package architect decomposes a plan.Plan into an ordered plan.TaskPlan.
package architect

import (
	"context"
	"fmt"

	"appforge/pkg/llm"
	"appforge/pkg/logx"
	"appforge/pkg/plan"
	"appforge/pkg/structured"
	"appforge/pkg/templates"
)

// SubmitTaskPlanTool is the forced tool through which the model returns the task plan.
const SubmitTaskPlanTool = "submit_task_plan"

// Config tunes the architect's model call.
type Config struct {
	MaxTokens   int
	Temperature float32
}

// Architect is the Task Decomposer stage.
type Architect struct {
	client llm.LLMClient
	logger *logx.Logger
	cfg    Config
}

// New creates an architect using client.
func New(client llm.LLMClient, cfg Config) *Architect {
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.TemperatureDefault
	}
	return &Architect{
		client: client,
		logger: logx.NewLogger("architect"),
		cfg:    cfg,
	}
}

// Decompose produces exactly one TaskPlan for p. Whatever plan the model echoes
// back is replaced by p itself; step order is kept as returned.
func (a *Architect) Decompose(ctx context.Context, p *plan.Plan) (*plan.TaskPlan, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: architect requires a plan", structured.ErrGeneration)
	}
	canonical, err := p.Canonical()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", structured.ErrGeneration, err)
	}

	prompt, err := templates.Render(templates.ArchitectTemplate, &templates.TemplateData{
		Plan:     canonical,
		ToolName: SubmitTaskPlanTool,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render architect prompt: %w", structured.ErrGeneration, err)
	}

	tp, err := structured.Generate[plan.TaskPlan](ctx, a.client, structured.Request{
		UserPrompt:      prompt,
		ToolName:        SubmitTaskPlanTool,
		ToolDescription: "Submit the ordered implementation steps for the plan.",
		Discard:         []string{"plan"},
		MaxTokens:       a.cfg.MaxTokens,
		Temperature:     a.cfg.Temperature,
	})
	if err != nil {
		a.logger.Error("Architect did not return a valid task plan: %v", err)
		return nil, err
	}
	if err := tp.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", structured.ErrGeneration, err)
	}

	tp.Plan = p
	a.logger.Info("Task plan for '%s' has %d steps", p.Name, len(tp.ImplementationSteps))
	for i := range tp.ImplementationSteps {
		logx.Debug(ctx, "architect", "step %d: %s", i, tp.ImplementationSteps[i].Filepath)
	}
	return tp, nil
}
