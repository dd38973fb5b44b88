package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haasonsaas/sage/internal/agent/subagent"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

type taskArgs struct {
	AgentType    string  `json:"agent_type,omitempty" jsonschema:"description=Subagent type: general_purpose (default) explore or plan"`
	Prompt       string  `json:"prompt" jsonschema:"description=The task for the subagent"`
	Thoroughness float64 `json:"thoroughness,omitempty" jsonschema:"description=Explore depth multiplier; 1.0 is default"`
}

// Task spawns a subagent through the global runner slot.
type Task struct{}

// NewTask creates the task tool.
func NewTask() *Task { return &Task{} }

func (t *Task) Name() string { return tools.NameTask }

func (t *Task) Description() string {
	return "Delegate a task to a specialized subagent with a bounded step budget. Returns the subagent's final message."
}

func (t *Task) Schema() json.RawMessage {
	return mustSchema(&taskArgs{})
}

func (t *Task) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args taskArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}

	runner := subagent.GetGlobal()
	if runner == nil {
		return models.ToolResult{}, fmt.Errorf("no subagent runner available")
	}

	var def subagent.Definition
	switch args.AgentType {
	case "", "general_purpose":
		def = subagent.GeneralPurpose()
	case "explore":
		thoroughness := args.Thoroughness
		if thoroughness <= 0 {
			thoroughness = 1.0
		}
		def = subagent.Explore(thoroughness)
	case "plan":
		def = subagent.Plan()
	default:
		return models.ToolResult{}, fmt.Errorf("unknown agent type: %s", args.AgentType)
	}

	output, err := runner.Run(ctx, def, args.Prompt)
	if err != nil {
		return models.ToolResult{}, err
	}

	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     output,
		Metadata:   map[string]any{"agent_type": string(def.Kind)},
	}, nil
}

func (t *Task) SupportsParallel() bool { return true }

func (t *Task) IsReadOnly() bool { return false }

func (t *Task) MaxExecutionTime() time.Duration { return 10 * time.Minute }

// RegisterAll registers the full builtin toolset on a registry.
func RegisterAll(registry *tools.Registry, workingDir string) {
	registry.Register(NewTaskDone())
	registry.Register(NewExitPlanMode())
	registry.Register(NewTask())
	registry.Register(NewBash(nil, workingDir))
	registry.Register(NewBashOutput(nil))
	registry.Register(NewKillShell(nil))
	registry.Register(NewRead(workingDir))
	registry.Register(NewWrite(workingDir))
	registry.Register(NewEdit(workingDir))
}
