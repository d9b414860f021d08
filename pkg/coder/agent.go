package coder

import (
	"context"

	"appforge/pkg/contextmgr"
	"appforge/pkg/llm"
	"appforge/pkg/logx"
	"appforge/pkg/toolloop"
	"appforge/pkg/tools"
)

// AgentConfig tunes the LLM sub-agent.
type AgentConfig struct {
	MaxIterations int
	MaxTokens     int
	Temperature   float32
	DebugLogging  bool
}

// LLMSubAgent runs a step as a tool-calling conversation with a model.
type LLMSubAgent struct {
	client   llm.LLMClient
	provider *tools.ToolProvider
	logger   *logx.Logger
	cfg      AgentConfig
}

// NewLLMSubAgent creates a sub-agent that talks to client and executes tools from provider.
func NewLLMSubAgent(client llm.LLMClient, provider *tools.ToolProvider, cfg AgentConfig) *LLMSubAgent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = toolloop.DefaultMaxIterations
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = llm.TemperatureDeterministic
	}
	return &LLMSubAgent{
		client:   client,
		provider: provider,
		logger:   logx.NewLogger("coder-agent"),
		cfg:      cfg,
	}
}

// Run implements SubAgent. Each step starts from a fresh conversation.
func (a *LLMSubAgent) Run(ctx context.Context, in *Instruction) error {
	cm := contextmgr.NewContextManager()
	loop := toolloop.New(a.client, a.logger)

	res, err := loop.Run(ctx, &toolloop.Config{
		ContextManager: cm,
		ToolProvider:   a.provider,
		SystemPrompt:   in.SystemPrompt,
		InitialPrompt:  in.TaskPrompt,
		MaxIterations:  a.cfg.MaxIterations,
		MaxTokens:      a.cfg.MaxTokens,
		Temperature:    a.cfg.Temperature,
		DebugLogging:   a.cfg.DebugLogging,
	})
	if err != nil {
		if a.cfg.DebugLogging {
			if dump, dumpErr := cm.Serialize(); dumpErr == nil {
				logx.Debug(ctx, "coder", "conversation for %s: %s", in.Step.Filepath, dump)
			}
		}
		return err
	}

	a.logger.Info("Step %d done after %d model calls, %d tool calls: %s",
		in.Index, res.Iterations, res.ToolCalls, firstLine(res.Content))
	return nil
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
