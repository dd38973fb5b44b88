package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/haasonsaas/sage/internal/shell"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

const bashMaxOutputChars = 30_000

type bashArgs struct {
	Command          string `json:"command" jsonschema:"description=The shell command to run"`
	WorkingDirectory string `json:"working_directory,omitempty" jsonschema:"description=Directory to run the command in"`
	RunInBackground  bool   `json:"run_in_background,omitempty" jsonschema:"description=Run the command as a background task and return a shell id"`
}

// Bash runs shell commands. Foreground runs block and capture output;
// background runs register with the background task registry and return a
// shell id for later polling.
type Bash struct {
	registry   *shell.Registry
	workingDir string
}

// NewBash creates the bash tool. A nil registry uses the process global.
func NewBash(registry *shell.Registry, workingDir string) *Bash {
	if registry == nil {
		registry = shell.Global()
	}
	return &Bash{registry: registry, workingDir: workingDir}
}

func (t *Bash) Name() string { return tools.NameBash }

func (t *Bash) Description() string {
	return "Run a shell command. Set run_in_background for long-running commands; poll them with bash_output and stop them with kill_shell."
}

func (t *Bash) Schema() json.RawMessage {
	return mustSchema(&bashArgs{})
}

func (t *Bash) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args bashArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}
	if strings.TrimSpace(args.Command) == "" {
		return models.ToolResult{}, fmt.Errorf("command is required")
	}

	workingDir := args.WorkingDirectory
	if workingDir == "" {
		workingDir = t.workingDir
	}

	metadata := map[string]any{
		"command":           args.Command,
		"working_directory": workingDir,
	}

	if args.RunInBackground {
		// Detach from the call context so the task outlives this tool call.
		shellID, err := t.registry.Spawn(context.Background(), args.Command, workingDir)
		if err != nil {
			return models.ToolResult{}, err
		}
		metadata["shell_id"] = shellID
		return models.ToolResult{
			ToolCallID: call.ID,
			ToolName:   t.Name(),
			Success:    true,
			Output:     fmt.Sprintf("Started background task %s", shellID),
			Metadata:   metadata,
		}, nil
	}

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", args.Command)
	cmd.Dir = workingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
		err = nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return models.ToolResult{}, fmt.Errorf("cancelled")
		}
		return models.ToolResult{}, err
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	if len(output) > bashMaxOutputChars {
		output = output[:bashMaxOutputChars] + "\n[output truncated]"
	}

	result := models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    exitCode == 0,
		Output:     output,
		ExitCode:   &exitCode,
		Metadata:   metadata,
	}
	if exitCode != 0 {
		result.Error = fmt.Sprintf("command exited with code %d", exitCode)
	}
	return result, nil
}

func (t *Bash) SupportsParallel() bool { return false }

func (t *Bash) IsReadOnly() bool { return false }

func (t *Bash) MaxExecutionTime() time.Duration { return 5 * time.Minute }

type bashOutputArgs struct {
	ShellID     string `json:"shell_id" jsonschema:"description=The background task shell id"`
	Incremental bool   `json:"incremental,omitempty" jsonschema:"description=Return only output since the last read"`
}

// BashOutput reads output from a background task.
type BashOutput struct {
	registry *shell.Registry
}

// NewBashOutput creates the bash_output tool.
func NewBashOutput(registry *shell.Registry) *BashOutput {
	if registry == nil {
		registry = shell.Global()
	}
	return &BashOutput{registry: registry}
}

func (t *BashOutput) Name() string { return "bash_output" }

func (t *BashOutput) Description() string {
	return "Read accumulated output from a background shell task. Incremental reads return only new output."
}

func (t *BashOutput) Schema() json.RawMessage {
	return mustSchema(&bashOutputArgs{})
}

func (t *BashOutput) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args bashOutputArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}

	var stdout, stderr string
	var ok bool
	if args.Incremental {
		stdout, stderr, ok = t.registry.GetIncrementalOutput(args.ShellID)
	} else {
		stdout, stderr, ok = t.registry.GetOutput(args.ShellID)
	}
	if !ok {
		return models.ToolResult{}, fmt.Errorf("unknown shell id: %s", args.ShellID)
	}

	status, _ := t.registry.Status(args.ShellID)
	output := fmt.Sprintf("status: %s\n", status)
	if stdout != "" {
		output += "[stdout]\n" + stdout
	}
	if stderr != "" {
		output += "[stderr]\n" + stderr
	}

	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     output,
		Metadata:   map[string]any{"shell_id": args.ShellID},
	}, nil
}

func (t *BashOutput) SupportsParallel() bool { return true }

func (t *BashOutput) IsReadOnly() bool { return true }

func (t *BashOutput) MaxExecutionTime() time.Duration { return 10 * time.Second }

type killShellArgs struct {
	ShellID string `json:"shell_id" jsonschema:"description=The background task shell id to kill"`
}

// KillShell terminates a background task.
type KillShell struct {
	registry *shell.Registry
}

// NewKillShell creates the kill_shell tool.
func NewKillShell(registry *shell.Registry) *KillShell {
	if registry == nil {
		registry = shell.Global()
	}
	return &KillShell{registry: registry}
}

func (t *KillShell) Name() string { return "kill_shell" }

func (t *KillShell) Description() string {
	return "Kill a background shell task. Waits briefly for graceful shutdown before forcing termination."
}

func (t *KillShell) Schema() json.RawMessage {
	return mustSchema(&killShellArgs{})
}

func (t *KillShell) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args killShellArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}
	if !t.registry.Kill(args.ShellID) {
		return models.ToolResult{}, fmt.Errorf("unknown shell id: %s", args.ShellID)
	}
	status, _ := t.registry.Status(args.ShellID)
	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     fmt.Sprintf("Killed %s (status: %s)", args.ShellID, status),
		Metadata:   map[string]any{"shell_id": args.ShellID},
	}, nil
}

func (t *KillShell) SupportsParallel() bool { return false }

func (t *KillShell) IsReadOnly() bool { return false }

func (t *KillShell) MaxExecutionTime() time.Duration { return 15 * time.Second }
