// Package config loads the agent configuration from a YAML file layered over
// defaults. The only value read from the environment is the API key, taken
// from the variable the configuration names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/sage/internal/contextmgr"
	"github.com/haasonsaas/sage/internal/ratelimit"
)

// Duration is a time.Duration that unmarshals from YAML strings like "5m"
// as well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
		return nil
	case int:
		*d = Duration(v)
		return nil
	case int64:
		*d = Duration(v)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	// Provider selects the LLM backend: anthropic, openai, or google.
	Provider string `yaml:"provider"`

	// Model is the model id. Empty uses the provider default.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `yaml:"base_url"`

	// MaxTokens bounds each LLM response.
	MaxTokens int `yaml:"max_tokens"`

	Agent      AgentConfig      `yaml:"agent"`
	Context    ContextConfig    `yaml:"context"`
	RateLimit  ratelimit.Config `yaml:"rate_limit"`
	Retry      RetryConfig      `yaml:"retry"`
	Trajectory TrajectoryConfig `yaml:"trajectory"`
	Session    SessionConfig    `yaml:"session"`
	Permission PermissionConfig `yaml:"permissions"`
}

// AgentConfig bounds the step loop.
type AgentConfig struct {
	MaxSteps         int      `yaml:"max_steps"`
	ExecutionTimeout Duration `yaml:"execution_timeout"`
	ContinueOnError  bool     `yaml:"continue_on_error"`
	SystemPrompt     string   `yaml:"system_prompt"`
}

// ContextConfig configures pruning.
type ContextConfig struct {
	TargetTokens int               `yaml:"target_tokens"`
	Pruner       contextmgr.Config `yaml:",inline"`
}

// RetryConfig configures LLM retry behavior.
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	MaxDuration  Duration `yaml:"max_duration"`
	RetryUnknown bool     `yaml:"retry_unknown"`
}

// TrajectoryConfig configures execution recording.
type TrajectoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Compress bool   `yaml:"compress"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	// Store is memory, file, or sqlite.
	Store string `yaml:"store"`
	// Path is the directory (file store) or database path (sqlite).
	Path string `yaml:"path"`
}

// PermissionConfig configures the permission engine.
type PermissionConfig struct {
	// Mode is policy, non_interactive, or interactive.
	Mode string `yaml:"mode"`

	// AutoResponse answers prompts in non_interactive mode.
	AutoResponse string `yaml:"auto_response"`

	// Rules are evaluated in source-priority order.
	Rules []PermissionRule `yaml:"rules"`
}

// PermissionRule is the YAML shape of a permission rule.
type PermissionRule struct {
	Behavior string `yaml:"behavior"`
	Tool     string `yaml:"tool"`
	Path     string `yaml:"path,omitempty"`
	Command  string `yaml:"command,omitempty"`
	Source   string `yaml:"source,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider:  "anthropic",
		APIKeyEnv: "ANTHROPIC_API_KEY",
		MaxTokens: 4096,
		Agent: AgentConfig{
			MaxSteps:         50,
			ExecutionTimeout: Duration(30 * time.Minute),
			ContinueOnError:  true,
		},
		Context: ContextConfig{
			TargetTokens: 100_000,
			Pruner:       contextmgr.DefaultConfig(),
		},
		RateLimit: ratelimit.DefaultConfig(),
		Retry: RetryConfig{
			MaxAttempts: 3,
			MaxDuration: Duration(2 * time.Minute),
		},
		Trajectory: TrajectoryConfig{
			Dir: "trajectories",
		},
		Session: SessionConfig{
			Store: "memory",
		},
		Permission: PermissionConfig{
			Mode: "policy",
		},
	}
}

// Load reads the configuration from path, layered over defaults. A missing
// file returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.sanitize()
	return cfg, nil
}

// APIKey resolves the API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

func (c *Config) sanitize() {
	if c.Provider == "" {
		c.Provider = "anthropic"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Agent.MaxSteps < 0 {
		c.Agent.MaxSteps = 0
	}
	if c.Context.TargetTokens <= 0 {
		c.Context.TargetTokens = 100_000
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Permission.Mode == "" {
		c.Permission.Mode = "policy"
	}
}
