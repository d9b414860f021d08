// Package config provides configuration loading, defaults, environment
// overrides and validation for appforge.
package config

import (
	"fmt"
	"strings"
	"time"

	"appforge/pkg/llm/middleware/ratelimit"
	"appforge/pkg/llm/middleware/retry"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// Defaults.
const (
	DefaultProvider       = ProviderAnthropic
	DefaultSandboxRoot    = "generated_project"
	DefaultMaxInvocations = 100
	DefaultMaxIterations  = 50
	DefaultMaxTokens      = 4096
	DefaultCoderMaxTokens = 8192
	DefaultTemperature    = 0.3
	DefaultTimeout        = 3 * time.Minute
	DefaultMetricsAddress = "127.0.0.1:9464"
	DefaultOllamaHost     = "http://localhost:11434"
)

// DefaultModels maps each provider to the model used when none is configured.
//
//nolint:gochecknoglobals // static provider table
var DefaultModels = map[string]string{
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4.1",
	ProviderGoogle:    "gemini-2.5-flash",
	ProviderOllama:    "qwen2.5-coder:7b",
}

// ProviderPattern infers a provider from a model name prefix.
type ProviderPattern struct {
	Prefix   string
	Provider string
}

// ProviderPatterns allows selecting a provider from the model name alone.
//
//nolint:gochecknoglobals // Intentional global for inference rules
var ProviderPatterns = []ProviderPattern{
	{"claude", ProviderAnthropic},
	{"gpt", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
	{"gemini", ProviderGoogle},
	{"phi", ProviderOllama},
	{"llama", ProviderOllama},
	{"qwen", ProviderOllama},
	{"mistral", ProviderOllama},
	{"codellama", ProviderOllama},
	{"deepseek", ProviderOllama},
}

// GetModelProvider returns the provider for modelName by prefix.
func GetModelProvider(modelName string) (string, error) {
	for i := range ProviderPatterns {
		if strings.HasPrefix(modelName, ProviderPatterns[i].Prefix) {
			return ProviderPatterns[i].Provider, nil
		}
	}
	return "", fmt.Errorf("unknown model '%s': no provider pattern match", modelName)
}

// LLMConfig selects and tunes the model client.
type LLMConfig struct {
	Provider    string           `yaml:"provider"`
	Model       string           `yaml:"model"`
	APIKey      string           `yaml:"api_key,omitempty"`
	BaseURL     string           `yaml:"base_url,omitempty"`
	Temperature float32          `yaml:"temperature"`
	MaxTokens   int              `yaml:"max_tokens"`
	Timeout     time.Duration    `yaml:"timeout"`
	Retry       retry.Config     `yaml:"retry"`
	RateLimit   ratelimit.Config `yaml:"rate_limit"` // zero disables
}

// SandboxConfig locates the generated project.
type SandboxConfig struct {
	Root string `yaml:"root"`
}

// OrchestratorConfig bounds a run.
type OrchestratorConfig struct {
	MaxInvocations int `yaml:"max_invocations"`
}

// CoderConfig tunes the coder's sub-agent.
type CoderConfig struct {
	MaxIterations int     `yaml:"max_iterations"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// DebugConfig defines configuration for debug logging.
type DebugConfig struct {
	LLMMessages bool     `yaml:"llm_messages"`
	Domains     []string `yaml:"domains,omitempty"`
}

// Config is the complete appforge configuration.
type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Sandbox      SandboxConfig      `yaml:"sandbox"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Coder        CoderConfig        `yaml:"coder"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Debug        DebugConfig        `yaml:"debug"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" && cfg.LLM.Model != "" {
		if provider, err := GetModelProvider(cfg.LLM.Model); err == nil {
			cfg.LLM.Provider = provider
		}
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = DefaultProvider
	}
	cfg.LLM.Provider = strings.ToLower(cfg.LLM.Provider)
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModels[cfg.LLM.Provider]
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultTemperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultTimeout
	}
	if cfg.LLM.Retry.MaxAttempts == 0 {
		cfg.LLM.Retry = retry.DefaultConfig
	}
	if cfg.LLM.Provider == ProviderOllama && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = DefaultOllamaHost
	}

	if cfg.Sandbox.Root == "" {
		cfg.Sandbox.Root = DefaultSandboxRoot
	}
	if cfg.Orchestrator.MaxInvocations == 0 {
		cfg.Orchestrator.MaxInvocations = DefaultMaxInvocations
	}
	if cfg.Coder.MaxIterations == 0 {
		cfg.Coder.MaxIterations = DefaultMaxIterations
	}
	if cfg.Coder.MaxTokens == 0 {
		cfg.Coder.MaxTokens = DefaultCoderMaxTokens
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = DefaultMetricsAddress
	}
}

// Validate checks structure only. Credentials are checked when the client is built.
func (c *Config) Validate() error {
	if _, ok := DefaultModels[c.LLM.Provider]; !ok {
		return fmt.Errorf("llm provider must be one of anthropic, openai, google, ollama (got %q)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model cannot be empty")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2 (got %v)", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 0 {
		return fmt.Errorf("llm max_tokens cannot be negative")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout cannot be negative")
	}
	if c.LLM.Retry.MaxAttempts < 1 {
		return fmt.Errorf("llm retry max_attempts must be at least 1")
	}
	if c.LLM.RateLimit.RequestsPerMinute < 0 || c.LLM.RateLimit.TokensPerMinute < 0 {
		return fmt.Errorf("llm rate_limit values cannot be negative")
	}
	if strings.TrimSpace(c.Sandbox.Root) == "" {
		return fmt.Errorf("sandbox root cannot be empty")
	}
	if c.Orchestrator.MaxInvocations < 1 {
		return fmt.Errorf("orchestrator max_invocations must be at least 1 (got %d)", c.Orchestrator.MaxInvocations)
	}
	if c.Coder.MaxIterations < 1 {
		return fmt.Errorf("coder max_iterations must be at least 1 (got %d)", c.Coder.MaxIterations)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics enabled but address is empty")
	}
	return nil
}
