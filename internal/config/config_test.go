package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/sage/internal/permission"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "anthropic" || cfg.MaxTokens != 4096 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Agent.MaxSteps != 50 {
		t.Errorf("default max steps = %d, want 50", cfg.Agent.MaxSteps)
	}
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sage.yaml")
	content := `
provider: openai
model: gpt-4o
api_key_env: OPENAI_API_KEY
agent:
  max_steps: 7
  execution_timeout: 5m
retry:
  max_attempts: 5
permissions:
  mode: interactive
  rules:
    - behavior: deny
      tool: "^bash$"
      command: ".*rm.*-rf.*"
      source: project
      reason: destructive
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" || cfg.Model != "gpt-4o" {
		t.Errorf("provider/model = %s/%s", cfg.Provider, cfg.Model)
	}
	if cfg.Agent.MaxSteps != 7 || cfg.Agent.ExecutionTimeout.Std() != 5*time.Minute {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Retry.MaxAttempts != 5 {
		t.Errorf("retry attempts = %d, want 5", cfg.Retry.MaxAttempts)
	}
	// Untouched sections keep defaults.
	if cfg.MaxTokens != 4096 {
		t.Errorf("max tokens = %d, want default 4096", cfg.MaxTokens)
	}
}

func TestPermissionRulesConvert(t *testing.T) {
	pc := PermissionConfig{Rules: []PermissionRule{
		{Behavior: "deny", Tool: "^bash$", Command: "rm", Source: "cli", Reason: "no"},
		{Behavior: "allow", Tool: "^read$", Source: "user"},
		{Behavior: "bogus", Tool: ".*"},
	}}

	rules := pc.ToRules()
	if len(rules) != 3 {
		t.Fatalf("rules = %d, want 3", len(rules))
	}
	if rules[0].Behavior != permission.Deny || rules[0].Source != permission.SourceCliArg {
		t.Errorf("rule 0 = %+v", rules[0])
	}
	if rules[1].Behavior != permission.Allow || rules[1].Source != permission.SourceUserSettings {
		t.Errorf("rule 1 = %+v", rules[1])
	}
	if rules[2].Behavior != permission.Ask {
		t.Errorf("unknown behavior must fall back to ask, got %s", rules[2].Behavior)
	}
	if !rules[0].Enabled {
		t.Error("rules default to enabled")
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("SAGE_TEST_KEY", "sk-test")
	cfg := Default()
	cfg.APIKeyEnv = "SAGE_TEST_KEY"
	if cfg.APIKey() != "sk-test" {
		t.Errorf("api key = %q", cfg.APIKey())
	}
}
