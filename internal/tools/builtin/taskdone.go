package builtin

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

type taskDoneArgs struct {
	Summary string `json:"summary" jsonschema:"description=Summary of what was accomplished"`
}

// TaskDone signals task completion. Its output string becomes the
// execution's final result.
type TaskDone struct{}

// NewTaskDone creates the task_done tool.
func NewTaskDone() *TaskDone { return &TaskDone{} }

func (t *TaskDone) Name() string { return tools.NameTaskDone }

func (t *TaskDone) Description() string {
	return "Mark the task as complete. Call this exactly once, when the task is fully done, with a summary of the work."
}

func (t *TaskDone) Schema() json.RawMessage {
	return mustSchema(&taskDoneArgs{})
}

func (t *TaskDone) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args taskDoneArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}
	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     args.Summary,
	}, nil
}

func (t *TaskDone) SupportsParallel() bool { return false }

func (t *TaskDone) IsReadOnly() bool { return true }

func (t *TaskDone) MaxExecutionTime() time.Duration { return 0 }

// ExitPlanMode transitions the session out of read-only planning. The loop
// watches for its successful result.
type ExitPlanMode struct{}

type exitPlanModeArgs struct {
	Plan string `json:"plan,omitempty" jsonschema:"description=The plan to execute after leaving plan mode"`
}

// NewExitPlanMode creates the exit_plan_mode tool.
func NewExitPlanMode() *ExitPlanMode { return &ExitPlanMode{} }

func (t *ExitPlanMode) Name() string { return tools.NameExitPlanMode }

func (t *ExitPlanMode) Description() string {
	return "Leave plan mode and begin executing. Provide the plan you intend to follow."
}

func (t *ExitPlanMode) Schema() json.RawMessage {
	return mustSchema(&exitPlanModeArgs{})
}

func (t *ExitPlanMode) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args exitPlanModeArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}
	output := "Exited plan mode."
	if args.Plan != "" {
		output += " Plan:\n" + args.Plan
	}
	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     output,
	}, nil
}

func (t *ExitPlanMode) SupportsParallel() bool { return false }

func (t *ExitPlanMode) IsReadOnly() bool { return true }

func (t *ExitPlanMode) MaxExecutionTime() time.Duration { return 0 }
