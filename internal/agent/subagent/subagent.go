// Package subagent provides bounded recursive execution of specialized
// child agents with filtered tool sets and step budgets.
//
// A subagent mirrors the parent loop but simpler: no permission engine and
// no trajectory. The parent records subagent invocations as tool results.
package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

// defaultMaxSteps is the step budget when a definition does not set one.
const defaultMaxSteps = 20

// Kind is the typed agent definition family.
type Kind string

const (
	KindGeneralPurpose Kind = "general_purpose"
	KindExplore        Kind = "explore"
	KindPlan           Kind = "plan"
	KindCustom         Kind = "custom"
)

// Definition configures a subagent: its system prompt, allowed tools, and
// step budget.
type Definition struct {
	// Kind selects the definition family.
	Kind Kind

	// Name labels the subagent in logs.
	Name string

	// SystemPrompt seeds the subagent's conversation.
	SystemPrompt string

	// AllowedTools filters the parent's tool set. Empty allows everything
	// except the distinguished loop tools.
	AllowedTools []string

	// MaxSteps is the step budget. Zero uses the default.
	MaxSteps int

	// Thoroughness scales the Explore budget. 1.0 is the default depth.
	Thoroughness float64
}

// GeneralPurpose returns the default subagent definition.
func GeneralPurpose() Definition {
	return Definition{
		Kind: KindGeneralPurpose,
		Name: "general-purpose",
		SystemPrompt: "You are a capable software engineering subagent. " +
			"Complete the requested work and reply with your findings.",
	}
}

// Explore returns a read-only exploration definition. Thoroughness scales
// the step budget.
func Explore(thoroughness float64) Definition {
	return Definition{
		Kind: KindExplore,
		Name: "explore",
		SystemPrompt: "You are an exploration subagent. Investigate the " +
			"codebase with read-only tools and report what you find.",
		AllowedTools: []string{tools.NameRead, tools.NameBash},
		Thoroughness: thoroughness,
	}
}

// Plan returns a planning definition restricted to read-only tools.
func Plan() Definition {
	return Definition{
		Kind: KindPlan,
		Name: "plan",
		SystemPrompt: "You are a planning subagent. Analyze the task and " +
			"produce a concrete step-by-step plan without modifying anything.",
		AllowedTools: []string{tools.NameRead},
	}
}

// budget resolves the effective step budget.
func (d Definition) budget() int {
	steps := d.MaxSteps
	if steps <= 0 {
		steps = defaultMaxSteps
	}
	if d.Kind == KindExplore && d.Thoroughness > 0 {
		steps = int(float64(steps) * d.Thoroughness)
		if steps < 1 {
			steps = 1
		}
	}
	return steps
}

// Runner executes subagent definitions against a shared provider
// configuration and a filtered view of the parent's tools.
type Runner struct {
	mu       sync.RWMutex
	client   llm.Client
	executor *tools.Executor
	logger   *slog.Logger
}

// NewRunner creates a subagent runner.
func NewRunner(client llm.Client, executor *tools.Executor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:   client,
		executor: executor,
		logger:   logger.With("component", "subagent"),
	}
}

// UpdateTools swaps the executor as the parent's toolset changes.
func (r *Runner) UpdateTools(executor *tools.Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executor = executor
}

// Run executes the subagent until it produces an assistant message with no
// tool calls, returning that message as the result. Hitting the step budget
// returns a partial-completion notice instead.
func (r *Runner) Run(ctx context.Context, def Definition, prompt string) (string, error) {
	r.mu.RLock()
	client := r.client
	executor := r.executor
	r.mu.RUnlock()

	if client == nil {
		return "", fmt.Errorf("subagent runner has no llm client")
	}
	if executor == nil {
		return "", fmt.Errorf("subagent runner has no tool executor")
	}

	schemas := executor.Registry().Schemas(r.toolFilter(def))
	conversation := []models.Message{
		models.SystemMessage(def.SystemPrompt),
		models.UserMessage(prompt),
	}

	budget := def.budget()
	var lastContent string

	for step := 1; step <= budget; step++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		response, err := client.Chat(ctx, conversation, schemas)
		if err != nil {
			return "", fmt.Errorf("subagent llm call failed: %w", err)
		}
		lastContent = response.Content

		if !response.HasToolCalls() {
			return response.Content, nil
		}

		conversation = append(conversation,
			models.AssistantMessage(response.Content, response.ToolCalls))
		results := executor.ExecuteBatch(ctx, response.ToolCalls)
		for _, result := range results {
			conversation = append(conversation,
				models.ToolMessage(result.ToolCallID, result.ToolName, result.Content()))
		}
	}

	r.logger.Debug("subagent hit step budget", "name", def.Name, "budget", budget)
	return fmt.Sprintf(
		"Subagent reached its step budget of %d before finishing. Partial result:\n%s",
		budget, lastContent), nil
}

// toolFilter builds the allow predicate for a definition. The distinguished
// loop tools and recursive task spawning are always excluded.
func (r *Runner) toolFilter(def Definition) func(name string) bool {
	blocked := map[string]bool{
		tools.NameTaskDone:     true,
		tools.NameExitPlanMode: true,
		tools.NameTask:         true,
	}
	if len(def.AllowedTools) == 0 {
		return func(name string) bool { return !blocked[name] }
	}
	allowed := make(map[string]bool, len(def.AllowedTools))
	for _, name := range def.AllowedTools {
		allowed[name] = true
	}
	return func(name string) bool { return allowed[name] && !blocked[name] }
}

// Global runner slot. The parent loop's task tool resolves subagents through
// this slot instead of threading references.
var (
	globalMu     sync.RWMutex
	globalRunner *Runner
)

// SetGlobal installs the process-wide subagent runner.
func SetGlobal(runner *Runner) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRunner = runner
}

// GetGlobal returns the process-wide runner, or nil when uninitialized.
func GetGlobal() *Runner {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRunner
}

// ResetGlobal clears the slot. Called on Shutdown.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRunner = nil
}
