package agent

import "time"

// Mode names how permission prompts are resolved during an execution. The
// loop does not branch on it; prompts are resolved by the permission
// engine's own configuration (its PolicyMode or Handler).
type Mode string

const (
	// ModeInteractive names runs whose prompts go to the user.
	ModeInteractive Mode = "interactive"

	// ModeNonInteractive names runs whose prompts are answered from the auto
	// response.
	ModeNonInteractive Mode = "non_interactive"

	// ModeBatch names runs whose prompts are resolved from policy.
	ModeBatch Mode = "batch"
)

// ExecutionOptions configure one ExecuteTask run.
type ExecutionOptions struct {
	// Mode names interactive, non-interactive, or batch behavior. The loop
	// does not read it.
	Mode Mode

	// AutoResponse is the canned answer for ModeNonInteractive runs. The loop
	// does not read it; the permission engine's Handler supplies answers.
	AutoResponse string

	// MaxSteps bounds loop iterations. Zero means unlimited.
	MaxSteps int

	// ExecutionTimeout bounds the whole run, checked at step boundaries.
	// Zero means no limit.
	ExecutionTimeout time.Duration

	// PromptTimeout is the bound on a single interactive permission prompt.
	// The loop does not read it; the permission engine's own PromptTimeout
	// applies.
	PromptTimeout time.Duration

	// RecordTrajectory enables the per-execution trajectory file.
	RecordTrajectory bool

	// TrajectoryDir is where trajectory files are written.
	TrajectoryDir string

	// CompressTrajectory gzips the trajectory file.
	CompressTrajectory bool

	// WorkingDir overrides the task's working directory.
	WorkingDir string

	// ContinueOnError keeps the loop running after non-fatal tool failures.
	ContinueOnError bool

	// PlanMode starts the session in read-only planning; the exit_plan_mode
	// tool ends it.
	PlanMode bool

	// ContextTargetTokens is the pruning target for the conversation. Zero
	// uses the default.
	ContextTargetTokens int

	// SystemPrompt overrides the default system prompt.
	SystemPrompt string

	// Model is advisory metadata recorded on the session.
	Model string
}

// DefaultOptions returns options for a batch run with trajectory recording
// disabled.
func DefaultOptions() ExecutionOptions {
	return ExecutionOptions{
		Mode:                ModeBatch,
		ContinueOnError:     true,
		ContextTargetTokens: defaultContextTarget,
	}
}

const defaultContextTarget = 100_000
