package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/sage/internal/bus"
	"github.com/haasonsaas/sage/internal/contextmgr"
	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/internal/metrics"
	"github.com/haasonsaas/sage/internal/permission"
	"github.com/haasonsaas/sage/internal/ratelimit"
	"github.com/haasonsaas/sage/internal/retry"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/internal/trajectory"
	"github.com/haasonsaas/sage/pkg/models"
)

// defaultSystemPrompt seeds the conversation when the options do not provide
// one.
const defaultSystemPrompt = "You are Sage, an autonomous software engineering agent. " +
	"Work step by step using the available tools. " +
	"Call task_done with a summary when the task is complete."

// LoopConfig wires the loop's collaborators.
type LoopConfig struct {
	// Pruner manages the conversation token budget. Nil uses defaults.
	Pruner *contextmgr.Pruner

	// RetryPolicy governs LLM call retries.
	RetryPolicy retry.Policy

	// Limiters provides per-provider rate limiters. Nil uses the process
	// global registry.
	Limiters *ratelimit.Registry

	// Bus receives lifecycle events. Optional.
	Bus *bus.Bus

	// Logger receives loop logs. Defaults to slog.Default.
	Logger *slog.Logger
}

// Loop drives a task from creation to a terminal outcome.
//
// Per iteration the loop prunes the conversation, calls the LLM under the
// retry policy, gates every tool call through the permission engine,
// dispatches approved calls through the executor, folds the results back
// into the conversation, and checks completion.
type Loop struct {
	client      llm.Client
	executor    *tools.Executor
	permissions *permission.Engine
	pruner      *contextmgr.Pruner
	retryPolicy retry.Policy
	limiters    *ratelimit.Registry
	bus         *bus.Bus
	logger      *slog.Logger
}

// NewLoop creates a step loop. If config is nil, defaults apply.
func NewLoop(client llm.Client, executor *tools.Executor, permissions *permission.Engine, config *LoopConfig) *Loop {
	cfg := LoopConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Pruner == nil {
		cfg.Pruner = contextmgr.NewPruner(contextmgr.DefaultConfig())
	}
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy()
	}
	if cfg.Limiters == nil {
		cfg.Limiters = ratelimit.Global()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loop{
		client:      client,
		executor:    executor,
		permissions: permissions,
		pruner:      cfg.Pruner,
		retryPolicy: cfg.RetryPolicy,
		limiters:    cfg.Limiters,
		bus:         cfg.Bus,
		logger:      cfg.Logger.With("component", "agent_loop"),
	}
}

// runState carries the per-run mutable state across iterations.
type runState struct {
	opts     ExecutionOptions
	checker  *CompletionChecker
	recorder *trajectory.Recorder
	planMode bool
	taskDone bool
}

// ExecuteTask creates an execution for the task and iterates steps until a
// terminal outcome is reached. The outcome always carries the execution with
// its full step list.
func (l *Loop) ExecuteTask(ctx context.Context, task *models.Task, opts ExecutionOptions) *ExecutionOutcome {
	execution := NewExecution(task)
	if l.client == nil {
		execution.Finish(false)
		return Failed(execution, NewExecutionError(ErrConfiguration, ErrNoClient.Error()))
	}

	task.Status = models.TaskStatusRunning
	if opts.WorkingDir != "" {
		task.WorkingDir = opts.WorkingDir
	}
	if opts.ContextTargetTokens <= 0 {
		opts.ContextTargetTokens = defaultContextTarget
	}

	system := opts.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	execution.Conversation = []models.Message{
		models.SystemMessage(system),
		models.UserMessage(task.Description),
	}

	state := &runState{
		opts:     opts,
		checker:  NewCompletionChecker(task.Description),
		planMode: opts.PlanMode,
	}
	if opts.RecordTrajectory {
		recorder, err := trajectory.NewRecorder(opts.TrajectoryDir, execution.ID, opts.CompressTrajectory)
		if err != nil {
			l.logger.Warn("failed to open trajectory file", "error", err)
		} else {
			state.recorder = recorder
		}
	}

	if l.bus != nil {
		l.bus.AgentStarted(execution.ID, task.Description)
	}

	outcome := l.run(ctx, execution, state)
	l.finish(execution, state, outcome)
	return outcome
}

// ContinueExecution appends a user turn to a prior execution's conversation
// and resumes the loop. Step numbers continue from the prior state.
func (l *Loop) ContinueExecution(ctx context.Context, execution *AgentExecution, userMessage string, opts ExecutionOptions) *ExecutionOutcome {
	if l.client == nil {
		return Failed(execution, NewExecutionError(ErrConfiguration, ErrNoClient.Error()))
	}
	if opts.ContextTargetTokens <= 0 {
		opts.ContextTargetTokens = defaultContextTarget
	}

	execution.EndedAt = nil
	execution.Conversation = append(execution.Conversation, models.UserMessage(userMessage))

	state := &runState{
		opts:     opts,
		checker:  NewCompletionChecker(execution.Task.Description),
		planMode: opts.PlanMode,
	}
	outcome := l.run(ctx, execution, state)
	l.finish(execution, state, outcome)
	return outcome
}

// run iterates the step algorithm until a terminal outcome.
func (l *Loop) run(ctx context.Context, execution *AgentExecution, state *runState) *ExecutionOutcome {
	for {
		// 1. Cancellation wins over everything else.
		if ctx.Err() != nil {
			return Interrupted(execution)
		}

		// 2. Step budget.
		nextStep := len(execution.Steps) + 1
		if state.opts.MaxSteps > 0 && nextStep > state.opts.MaxSteps {
			return MaxStepsReached(execution)
		}

		// 3. Execution timeout, checked at step boundaries.
		if state.opts.ExecutionTimeout > 0 && time.Since(execution.StartedAt) > state.opts.ExecutionTimeout {
			return Failed(execution, NewExecutionError(ErrTimeout, ErrExecutionTimeout.Error()))
		}

		// 4. Rate limiter acquire (may suspend).
		limiter := l.limiters.For(l.client.Provider())
		waitStart := time.Now()
		if err := limiter.Acquire(ctx); err != nil {
			return Interrupted(execution)
		}
		metrics.RateLimitWaitSeconds.Observe(time.Since(waitStart).Seconds())

		if l.bus != nil {
			l.bus.AgentIterationStart(nextStep)
		}

		// 5. Build the request view: pruned conversation plus tool schemas
		// filtered by plan mode.
		pruned := l.pruner.Prune(execution.Conversation, state.opts.ContextTargetTokens)
		schemas := l.executor.Registry().Schemas(state.toolFilter())

		l.record(state, trajectory.Record{
			Type:       trajectory.RecordLLMRequest,
			StepNumber: nextStep,
			Messages:   pruned.Kept,
		})

		// 6. LLM call under the retry policy.
		response, err := l.chat(ctx, pruned.Kept, schemas)
		if err != nil {
			if ctx.Err() != nil {
				return Interrupted(execution)
			}
			execErr := ClassifyError(err, l.client.Provider())
			return Failed(execution, execErr)
		}

		// 7. Record the step in Thinking state.
		step := execution.BeginStep()
		l.record(state, trajectory.Record{
			Type:       trajectory.RecordStepBegin,
			StepNumber: step.StepNumber,
		})
		step.Response = response
		execution.RecordUsage(response.Usage)
		metrics.StepsTotal.Inc()

		l.record(state, trajectory.Record{
			Type:         trajectory.RecordLLMResponse,
			StepNumber:   step.StepNumber,
			Content:      response.Content,
			FinishReason: response.FinishReason,
			Usage:        response.Usage,
		})
		if l.bus != nil && response.Content != "" {
			l.bus.Publish(models.AgentEvent{
				Type:   models.EventTextComplete,
				Stream: &models.StreamEventPayload{Full: response.Content},
			})
		}

		// 8. No tool calls means the model is done talking. A natural end
		// without task_done is a conversational turn; either way the run
		// succeeds with the assistant text as the result.
		if !response.HasToolCalls() {
			step.State = StepCompleted
			step.Duration = time.Since(step.StartedAt)
			execution.Conversation = append(execution.Conversation,
				models.AssistantMessage(response.Content, nil))
			if llm.IsToolUse(response.FinishReason) {
				l.logger.Warn("finish reason indicates tool use but no tool calls were returned",
					"finish_reason", response.FinishReason)
			}
			if llm.IsNaturalEnd(response.FinishReason) && !state.taskDone {
				execution.Metadata["conversational_turn"] = "true"
			}
			if !state.taskDone && execution.FinalResult == "" {
				execution.FinalResult = response.Content
			}
			return Success(execution)
		}

		// 9. Gate and dispatch the tool calls.
		step.State = StepToolExecution
		results, interrupted := l.executeToolCalls(ctx, execution, state, step, response.ToolCalls)
		step.ToolResults = results
		step.Duration = time.Since(step.StartedAt)

		// 10. Fold the turn back into the conversation: the assistant
		// message with its tool-use blocks, then one tool message per
		// result, preserving emission order.
		execution.Conversation = append(execution.Conversation,
			models.AssistantMessage(response.Content, response.ToolCalls))
		for _, result := range results {
			execution.Conversation = append(execution.Conversation,
				models.ToolMessage(result.ToolCallID, result.ToolName, result.Content()))
		}

		if interrupted {
			return Interrupted(execution)
		}

		if !state.opts.ContinueOnError {
			for _, result := range results {
				if !result.Success {
					step.State = StepError
					step.Error = result.Error
					return Failed(execution, ToolError(result.ToolName, result.Error))
				}
			}
		}

		// 11. Completion check: a successful task_done carries the final
		// result.
		if doneResult, ok := TaskDoneResult(results); ok {
			state.taskDone = true
			execution.FinalResult = doneResult.Output
			step.State = StepCompleted
			if warning := state.checker.CompletionWarning(); warning != "" {
				execution.Metadata["completion_warning"] = warning
				if l.bus != nil {
					l.bus.Warning("completion", warning)
				}
			}
			return Success(execution)
		}

		step.State = StepCompleted
	}
}

// chat performs the LLM call under the retry policy, classifying each
// failure. Fatal kinds abort immediately; transient kinds are retried with
// backoff and optional retry-after hints.
func (l *Loop) chat(ctx context.Context, messages []models.Message, schemas []llm.ToolSchema) (*llm.Response, error) {
	policy := l.retryPolicy
	policy.Classify = func(err error) retry.Classification {
		execErr := ClassifyError(err, l.client.Provider())
		if execErr.Fatal() {
			return retry.Permanent
		}
		if execErr.Retryable() {
			return retry.Transient
		}
		return retry.Unknown
	}

	response, result := retry.DoWithValue(ctx, policy, func() (*llm.Response, error) {
		return l.client.Chat(ctx, messages, schemas)
	})
	if result.Attempts > 1 {
		metrics.LLMRetriesTotal.Add(float64(result.Attempts - 1))
	}
	if result.Err != nil {
		return nil, result.Err
	}
	return response, nil
}

// executeToolCalls gates each call through the permission engine and
// dispatches the approved ones. Results come back in emission order.
// The second return value reports cancellation observed during execution.
func (l *Loop) executeToolCalls(ctx context.Context, execution *AgentExecution, state *runState, step *AgentStep, calls []models.ToolCall) ([]models.ToolResult, bool) {
	results := make([]models.ToolResult, len(calls))

	approved := make([]models.ToolCall, 0, len(calls))
	approvedIdx := make([]int, 0, len(calls))

	for i, call := range calls {
		l.record(state, trajectory.Record{
			Type:       trajectory.RecordToolCall,
			StepNumber: step.StepNumber,
			ToolCall:   &calls[i],
		})
		if l.bus != nil {
			l.bus.ToolCallStart(call.ID, call.Name)
		}

		// Plan mode blocks mutating tools regardless of rules; the
		// exit_plan_mode tool is the only way out.
		if state.planMode && !l.planModeAllows(call.Name) {
			results[i] = models.FailedToolResult(call, "denied: plan mode permits read-only tools")
			continue
		}

		outcome := l.permissions.Check(ctx, &permission.Request{
			ToolName: call.Name,
			Call:     call,
			Reason:   "requested by model",
			Risk:     assessRisk(l.executor.Registry(), call),
			Context:  map[string]string{"working_directory": execution.Task.WorkingDir},
		})
		if !outcome.Allowed {
			results[i] = models.FailedToolResult(call, "denied: "+outcome.Reason)
			continue
		}
		if outcome.ModifiedCall != nil {
			calls[i] = *outcome.ModifiedCall
			calls[i].ID = call.ID
		}

		approved = append(approved, calls[i])
		approvedIdx = append(approvedIdx, i)
	}

	execResults := l.executor.ExecuteBatch(ctx, approved)
	for j, result := range execResults {
		results[approvedIdx[j]] = result
	}

	interrupted := ctx.Err() != nil
	for i := range results {
		state.checker.Observe(results[i])
		metrics.RecordToolResult(results[i].ToolName, results[i].Success,
			float64(results[i].DurationMs)/1000.0)
		l.record(state, trajectory.Record{
			Type:       trajectory.RecordToolResult,
			StepNumber: step.StepNumber,
			ToolResult: &results[i],
		})
		if l.bus != nil {
			l.bus.ToolCallComplete(results[i].ToolCallID, results[i].Success,
				results[i].Output, results[i].Error)
		}

		// The exit_plan_mode tool invocation is the plan-mode state
		// transition point.
		if results[i].ToolName == tools.NameExitPlanMode && results[i].Success {
			state.planMode = false
		}
	}

	return results, interrupted
}

// planModeAllows reports whether a tool may run while planning.
func (l *Loop) planModeAllows(name string) bool {
	if name == tools.NameExitPlanMode || name == tools.NameTaskDone {
		return true
	}
	tool, ok := l.executor.Registry().Get(name)
	return ok && tool.IsReadOnly()
}

// toolFilter returns the schema filter for the current mode.
func (s *runState) toolFilter() func(name string) bool {
	if !s.planMode {
		return nil
	}
	return func(name string) bool {
		return name == tools.NameExitPlanMode || name == tools.NameTaskDone ||
			name == tools.NameRead || name == tools.NameTask
	}
}

// assessRisk derives the advisory risk level for a call.
func assessRisk(registry *tools.Registry, call models.ToolCall) permission.RiskLevel {
	if tool, ok := registry.Get(call.Name); ok && tool.IsReadOnly() {
		return permission.RiskLow
	}

	if call.Name == tools.NameBash {
		command := call.StringArg("command")
		if containsDestructive(command) {
			return permission.RiskCritical
		}
		return permission.RiskHigh
	}

	switch call.Name {
	case tools.NameWrite, tools.NameEdit, tools.NameMultiEdit:
		return permission.RiskMedium
	case tools.NameTaskDone, tools.NameExitPlanMode:
		return permission.RiskLow
	default:
		return permission.RiskMedium
	}
}

var destructivePatterns = []string{"rm -rf", "sudo ", "mkfs", "dd if=", "> /dev/"}

func containsDestructive(command string) bool {
	for _, pattern := range destructivePatterns {
		if strings.Contains(command, pattern) {
			return true
		}
	}
	return false
}

// record appends a trajectory record when recording is enabled.
func (l *Loop) record(state *runState, record trajectory.Record) {
	if state.recorder == nil {
		return
	}
	if err := state.recorder.Append(record); err != nil {
		l.logger.Warn("failed to append trajectory record", "error", err)
	}
}

// finish applies terminal bookkeeping: execution end time, task status,
// metrics, events, and the trajectory completion record.
func (l *Loop) finish(execution *AgentExecution, state *runState, outcome *ExecutionOutcome) {
	success := outcome.Kind == OutcomeSuccess
	execution.Finish(success)

	if execution.Task != nil {
		if success {
			execution.Task.Status = models.TaskStatusCompleted
		} else {
			execution.Task.Status = models.TaskStatusFailed
		}
	}

	metrics.ExecutionsTotal.WithLabelValues(string(outcome.Kind)).Inc()

	if state.recorder != nil {
		record := trajectory.Record{
			Type:        trajectory.RecordExecutionComplete,
			Success:     &success,
			FinalResult: execution.FinalResult,
			Usage:       &execution.TotalUsage,
		}
		if outcome.Err != nil {
			record.Error = outcome.Err.Error()
		}
		if err := state.recorder.Append(record); err != nil {
			l.logger.Warn("failed to append trajectory record", "error", err)
		}
		if err := state.recorder.Close(); err != nil {
			l.logger.Warn("failed to close trajectory file", "error", err)
		}
	}

	if l.bus != nil {
		l.bus.AgentCompleted(success)
	}

	l.logger.Info("execution finished",
		"execution_id", execution.ID,
		"outcome", outcome.Kind,
		"steps", len(execution.Steps),
		"total_tokens", execution.TotalUsage.TotalTokens)
}
