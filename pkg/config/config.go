// Package config loads and validates the .docbot/config.toml settings,
// layered with DOCBOT_* environment variables and built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Defaults applied when config.toml omits a key.
const (
	DefaultModel            = "anthropic/claude-sonnet-4.5"
	DefaultConcurrency      = 4
	DefaultTimeoutSeconds   = 120.0
	DefaultMaxScopes        = 20
	DefaultMaxSnapshots     = 10
	DefaultAgentMaxDepth    = 2
	DefaultAgentMaxParallel = 8
	DefaultLLMConcurrency   = 8
	DefaultAgentMaxSteps    = 15
)

// APIKeyEnv is the environment variable holding the OpenRouter API key.
// It is read once at startup; absence forces NoLLM.
const APIKeyEnv = "OPENROUTER_KEY"

// Config is the runtime configuration for one repository.
type Config struct {
	// Model is handed verbatim to the LLM adapter.
	Model string `mapstructure:"model"`

	// Concurrency sizes the orchestrator's scope-level semaphore.
	Concurrency int `mapstructure:"concurrency"`

	// Timeout is the per-scope deadline in seconds.
	Timeout float64 `mapstructure:"timeout"`

	// MaxScopes caps the planner's scope count.
	MaxScopes int `mapstructure:"max_scopes"`

	// MaxSnapshots is the history retention limit.
	MaxSnapshots int `mapstructure:"max_snapshots"`

	// NoLLM disables all LLM calls; deterministic summaries are used.
	NoLLM bool `mapstructure:"no_llm"`

	// AgentMaxDepth is the delegation ceiling (0 disables delegation).
	AgentMaxDepth int `mapstructure:"agent_max_depth"`

	// AgentMaxParallel bounds concurrent children per agent.
	AgentMaxParallel int `mapstructure:"agent_max_parallel"`

	// LLMMaxConcurrency sizes the adapter's internal semaphore.
	LLMMaxConcurrency int `mapstructure:"llm_max_concurrency"`

	// AgentMaxSteps bounds the ReAct loop per agent.
	AgentMaxSteps int `mapstructure:"agent_max_steps"`

	// Ignore holds extra doublestar globs excluded from scanning.
	Ignore []string `mapstructure:"ignore"`

	// APIKey is resolved from the environment, never from the file.
	APIKey string `mapstructure:"-"`
}

// ScopeTimeout returns the per-scope deadline as a duration.
func (c *Config) ScopeTimeout() time.Duration {
	return time.Duration(c.Timeout * float64(time.Second))
}

// Validate checks field invariants, fail-fast with a field-qualified error.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("config: model must not be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be > 0 seconds, got %g", c.Timeout)
	}
	if c.MaxScopes < 1 {
		return fmt.Errorf("config: max_scopes must be >= 1, got %d", c.MaxScopes)
	}
	if c.MaxSnapshots < 1 {
		return fmt.Errorf("config: max_snapshots must be >= 1, got %d", c.MaxSnapshots)
	}
	if c.AgentMaxDepth < 0 {
		return fmt.Errorf("config: agent_max_depth must be >= 0, got %d", c.AgentMaxDepth)
	}
	if c.AgentMaxParallel < 1 {
		return fmt.Errorf("config: agent_max_parallel must be >= 1, got %d", c.AgentMaxParallel)
	}
	if c.LLMMaxConcurrency < 1 {
		return fmt.Errorf("config: llm_max_concurrency must be >= 1, got %d", c.LLMMaxConcurrency)
	}
	if c.AgentMaxSteps < 1 {
		return fmt.Errorf("config: agent_max_steps must be >= 1, got %d", c.AgentMaxSteps)
	}
	return nil
}
