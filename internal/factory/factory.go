// Package factory assembles a runnable pipeline from configuration.
package factory

import (
	"fmt"
	"net/http"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"appforge/pkg/architect"
	"appforge/pkg/coder"
	"appforge/pkg/config"
	"appforge/pkg/llm"
	llmmetrics "appforge/pkg/llm/middleware/metrics"
	"appforge/pkg/llm/middleware/ratelimit"
	"appforge/pkg/llm/middleware/retry"
	"appforge/pkg/llm/middleware/timeout"
	"appforge/pkg/llm/providers/anthropic"
	"appforge/pkg/llm/providers/google"
	"appforge/pkg/llm/providers/ollama"
	"appforge/pkg/llm/providers/openai"
	"appforge/pkg/logx"
	"appforge/pkg/metrics"
	"appforge/pkg/orchestrator"
	"appforge/pkg/planner"
	"appforge/pkg/sandbox"
	"appforge/pkg/tools"
)

// Options customizes pipeline assembly.
type Options struct {
	// Client replaces the configured provider. Middleware is still applied.
	Client llm.LLMClient
	// Registry receives all metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// OnTransition is forwarded to the orchestrator.
	OnTransition func(orchestrator.Event)
}

// Pipeline holds everything one run needs.
type Pipeline struct {
	Config       *config.Config
	Store        *sandbox.Store
	Registry     *prometheus.Registry
	Client       llm.LLMClient
	Orchestrator *orchestrator.Orchestrator
}

// NewProviderClient creates the raw client for the configured provider.
func NewProviderClient(cfg *config.Config) (llm.LLMClient, error) {
	apiKey, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	model := cfg.LLM.Model
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		var opts []anthropicoption.RequestOption
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.LLM.BaseURL))
		}
		return anthropic.NewClaudeClient(apiKey, model, opts...), nil
	case config.ProviderOpenAI:
		var opts []openaioption.RequestOption
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.NewOfficialClient(apiKey, model, opts...), nil
	case config.ProviderGoogle:
		return google.NewGeminiClient(apiKey, model), nil
	case config.ProviderOllama:
		return ollama.NewClient(cfg.LLM.BaseURL, model, http.DefaultClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.LLM.Provider)
	}
}

// WrapClient applies the middleware chain:
// Metrics -> Retry -> RateLimit -> Timeout -> RawClient.
func WrapClient(raw llm.LLMClient, cfg *config.Config, recorder llmmetrics.Recorder) llm.LLMClient {
	logger := logx.NewLogger("llm")
	var limiter *ratelimit.Limiter
	if cfg.LLM.RateLimit.Enabled() {
		limiter = ratelimit.NewLimiter(cfg.LLM.RateLimit)
	}
	return llm.Chain(raw,
		llmmetrics.Middleware(recorder, nil, logger),
		retry.Middleware(retry.NewPolicy(cfg.LLM.Retry, nil), logger),
		ratelimit.Middleware(limiter),
		timeout.Middleware(cfg.LLM.Timeout),
	)
}

// NewPipeline builds the sandbox, tools, stages and orchestrator for cfg.
func NewPipeline(cfg *config.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
	}

	raw := opts.Client
	if raw == nil {
		var err error
		if raw, err = NewProviderClient(cfg); err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.LLM.Provider, err)
		}
	}
	client := WrapClient(raw, cfg, llmmetrics.NewPrometheusRecorder(reg))

	store, err := sandbox.New(cfg.Sandbox.Root)
	if err != nil {
		return nil, err
	}
	provider, err := tools.NewProvider(store, tools.CoderTools)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool provider: %w", err)
	}

	p := planner.New(client, planner.Config{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	a := architect.New(client, architect.Config{
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	agent := coder.NewLLMSubAgent(client, provider, coder.AgentConfig{
		MaxIterations: cfg.Coder.MaxIterations,
		MaxTokens:     cfg.Coder.MaxTokens,
		Temperature:   cfg.Coder.Temperature,
		DebugLogging:  cfg.Debug.LLMMessages,
	})
	executor := coder.NewExecutor(store, provider, agent)

	orch := orchestrator.New(p, a, executor, orchestrator.Config{
		Recorder:     metrics.NewPrometheusRecorder(reg),
		OnTransition: opts.OnTransition,
	})

	return &Pipeline{
		Config:       cfg,
		Store:        store,
		Registry:     reg,
		Client:       client,
		Orchestrator: orch,
	}, nil
}
