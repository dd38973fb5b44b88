package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

// StepState is the state of a single loop iteration.
type StepState string

const (
	StepThinking      StepState = "thinking"
	StepToolExecution StepState = "tool_execution"
	StepError         StepState = "error"
	StepCompleted     StepState = "completed"
)

// AgentStep is one iteration of the reason-act loop: one LLM call plus zero
// or more tool executions.
type AgentStep struct {
	// StepNumber is 1-based and contiguous within an execution.
	StepNumber int `json:"step_number"`

	// State is the step's current state.
	State StepState `json:"state"`

	// Response is the LLM response snapshot for this step.
	Response *llm.Response `json:"response,omitempty"`

	// ToolResults holds the results of this step's tool calls, in emission
	// order.
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`

	// Error describes a step-level failure, if any.
	Error string `json:"error,omitempty"`

	// StartedAt and Duration capture step timing.
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Usage returns the token usage recorded by this step's LLM call.
func (s *AgentStep) Usage() models.TokenUsage {
	if s.Response == nil || s.Response.Usage == nil {
		return models.TokenUsage{}
	}
	return *s.Response.Usage
}

// AgentExecution is the full record of serving one task.
//
// Invariants: step numbers are contiguous starting at 1; EndedAt is set
// exactly when a terminal outcome is reached; TotalUsage equals the
// component-wise sum of per-step usage.
type AgentExecution struct {
	// ID uniquely identifies the execution.
	ID string `json:"id"`

	// Task is the task being served.
	Task *models.Task `json:"task"`

	// Steps is the ordered step sequence.
	Steps []AgentStep `json:"steps"`

	// Conversation is the canonical message history, carried so the
	// execution can be continued with a follow-up user turn.
	Conversation []models.Message `json:"conversation,omitempty"`

	// FinalResult is the result extracted from a successful task_done call
	// or the final assistant message.
	FinalResult string `json:"final_result,omitempty"`

	// Success reports whether the execution completed successfully.
	Success bool `json:"success"`

	// TotalUsage aggregates token usage across steps.
	TotalUsage models.TokenUsage `json:"total_usage"`

	// StartedAt and EndedAt bound the execution.
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Metadata carries arbitrary execution annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewExecution creates an execution for the task.
func NewExecution(task *models.Task) *AgentExecution {
	return &AgentExecution{
		ID:        uuid.NewString(),
		Task:      task,
		StartedAt: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// BeginStep appends a new step in Thinking state and returns it. Step
// numbers stay contiguous.
func (e *AgentExecution) BeginStep() *AgentStep {
	e.Steps = append(e.Steps, AgentStep{
		StepNumber: len(e.Steps) + 1,
		State:      StepThinking,
		StartedAt:  time.Now(),
	})
	return &e.Steps[len(e.Steps)-1]
}

// CurrentStep returns the most recent step, or nil before the first.
func (e *AgentExecution) CurrentStep() *AgentStep {
	if len(e.Steps) == 0 {
		return nil
	}
	return &e.Steps[len(e.Steps)-1]
}

// RecordUsage folds a step's LLM usage into the execution total.
func (e *AgentExecution) RecordUsage(usage *models.TokenUsage) {
	if usage != nil {
		e.TotalUsage.Add(*usage)
	}
}

// Finish marks the execution terminal. Repeated calls keep the first end
// time.
func (e *AgentExecution) Finish(success bool) {
	e.Success = success
	if e.EndedAt == nil {
		now := time.Now()
		e.EndedAt = &now
	}
}

// IsTerminal reports whether the execution reached a terminal outcome.
func (e *AgentExecution) IsTerminal() bool {
	return e.EndedAt != nil
}

// Duration returns the execution's wall-clock duration so far.
func (e *AgentExecution) Duration() time.Duration {
	if e.EndedAt != nil {
		return e.EndedAt.Sub(e.StartedAt)
	}
	return time.Since(e.StartedAt)
}
