package tools

// Distinguished tool names the loop gives special treatment.
const (
	// NameTaskDone signals completion; its output becomes the final result.
	NameTaskDone = "task_done"

	// NameExitPlanMode transitions the session out of read-only planning.
	NameExitPlanMode = "exit_plan_mode"

	// NameTask spawns a subagent.
	NameTask = "task"

	// NameBash runs shell commands, optionally in the background.
	NameBash = "bash"

	// File operation tools tracked for completion verification.
	NameRead      = "read"
	NameWrite     = "write"
	NameEdit      = "edit"
	NameMultiEdit = "multiedit"
)
