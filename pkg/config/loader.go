package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"appforge/pkg/logx"
)

// Environment variables read by Load.
const (
	EnvProvider       = "APPFORGE_PROVIDER"
	EnvModel          = "APPFORGE_MODEL"
	EnvSandboxRoot    = "APPFORGE_SANDBOX_ROOT"
	EnvMaxInvocations = "APPFORGE_MAX_INVOCATIONS"
	EnvOllamaHost     = "OLLAMA_HOST"
)

// APIKeyEnvVars lists, per provider, the variables holding its API key in
// order of precedence.
//
//nolint:gochecknoglobals // static provider table
var APIKeyEnvVars = map[string][]string{
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderGoogle:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// Load reads path (if non-empty), applies environment overrides and defaults,
// and validates the result. A missing file is an error only when path was
// given explicitly.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found", path)
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		logx.NewLogger("config").Debug("Loaded config from %s", path)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.LLM.Provider = v
		if os.Getenv(EnvModel) == "" {
			cfg.LLM.Model = ""
		}
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv(EnvSandboxRoot); v != "" {
		cfg.Sandbox.Root = v
	}
	if v := os.Getenv(EnvMaxInvocations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvMaxInvocations, err)
		}
		cfg.Orchestrator.MaxInvocations = n
	}
	if v := os.Getenv(EnvOllamaHost); v != "" && strings.EqualFold(cfg.LLM.Provider, ProviderOllama) {
		cfg.LLM.BaseURL = v
	}
	return nil
}

// GetSecret returns an environment variable by name.
func GetSecret(name string) (string, error) {
	if value := os.Getenv(name); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("secret %s not found in environment", name)
}

// APIKey returns the key for the configured provider: the config file value if
// set, otherwise the first non-empty provider variable. Ollama needs none.
func (c *Config) APIKey() (string, error) {
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey, nil
	}
	names, ok := APIKeyEnvVars[c.LLM.Provider]
	if !ok {
		return "", nil
	}
	for _, name := range names {
		if value, err := GetSecret(name); err == nil {
			return value, nil
		}
	}
	return "", fmt.Errorf("no API key for provider %s: set %s", c.LLM.Provider, strings.Join(names, " or "))
}

// Save writes cfg as YAML, omitting the API key.
func Save(cfg *Config, path string) error {
	out := *cfg
	out.LLM.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
