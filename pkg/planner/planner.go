// Package planner turns a free-text request into a plan.Plan.
package planner

import (
	"context"
	"fmt"
	"strings"

	"appforge/pkg/llm"
	"appforge/pkg/logx"
	"appforge/pkg/plan"
	"appforge/pkg/structured"
	"appforge/pkg/templates"
)

// SubmitPlanTool is the forced tool through which the model returns the plan.
const SubmitPlanTool = "submit_plan"

// Config tunes the planner's model call.
type Config struct {
	MaxTokens   int
	Temperature float32
}

// Planner is the Plan Generator stage.
type Planner struct {
	client llm.LLMClient
	logger *logx.Logger
	cfg    Config
}

// New creates a planner using client.
func New(client llm.LLMClient, cfg Config) *Planner {
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.TemperatureDefault
	}
	return &Planner{
		client: client,
		logger: logx.NewLogger("planner"),
		cfg:    cfg,
	}
}

// Generate produces exactly one Plan for userPrompt. Any failure to obtain a
// valid plan wraps structured.ErrGeneration.
func (p *Planner) Generate(ctx context.Context, userPrompt string) (*plan.Plan, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return nil, fmt.Errorf("%w: user prompt is empty", structured.ErrGeneration)
	}

	prompt, err := templates.Render(templates.PlannerTemplate, &templates.TemplateData{
		UserPrompt: userPrompt,
		ToolName:   SubmitPlanTool,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to render planner prompt: %w", structured.ErrGeneration, err)
	}

	result, err := structured.Generate[plan.Plan](ctx, p.client, structured.Request{
		UserPrompt:      prompt,
		ToolName:        SubmitPlanTool,
		ToolDescription: "Submit the complete project plan.",
		MaxTokens:       p.cfg.MaxTokens,
		Temperature:     p.cfg.Temperature,
	})
	if err != nil {
		p.logger.Error("Planner did not return a valid plan: %v", err)
		return nil, err
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", structured.ErrGeneration, err)
	}

	p.logger.Info("Plan '%s' with %d files (%s)", result.Name, len(result.Files), result.Techstack)
	return result, nil
}
