package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/haasonsaas/sage/pkg/models"
)

// ExecutorConfig configures the tool executor.
type ExecutorConfig struct {
	// DefaultTimeout applies to tools that do not declare their own
	// MaxExecutionTime.
	// Default: 120s
	DefaultTimeout time.Duration

	// MaxConcurrency limits the number of parallel tool executions.
	// Default: 5
	MaxConcurrency int

	// AllowParallel enables concurrent dispatch for batches whose tools all
	// support it.
	// Default: true
	AllowParallel bool
}

// DefaultExecutorConfig returns the default executor configuration.
func DefaultExecutorConfig() *ExecutorConfig {
	return &ExecutorConfig{
		DefaultTimeout: 120 * time.Second,
		MaxConcurrency: 5,
		AllowParallel:  true,
	}
}

func sanitizeExecutorConfig(config *ExecutorConfig) *ExecutorConfig {
	if config == nil {
		return DefaultExecutorConfig()
	}
	cfg := *config
	defaults := DefaultExecutorConfig()
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = defaults.DefaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	return &cfg
}

// Executor dispatches tool calls with timeouts, argument validation, and
// parallel/serial gating. It never returns errors to the caller; every
// failure becomes a ToolResult with Success=false so the model can observe
// and recover.
type Executor struct {
	registry *Registry
	config   *ExecutorConfig

	// Semaphore for concurrency limiting.
	sem chan struct{}
}

// NewExecutor creates a tool executor over the given registry.
// If config is nil, DefaultExecutorConfig is used.
func NewExecutor(registry *Registry, config *ExecutorConfig) *Executor {
	config = sanitizeExecutorConfig(config)
	return &Executor{
		registry: registry,
		config:   config,
		sem:      make(chan struct{}, config.MaxConcurrency),
	}
}

// Registry returns the executor's tool registry.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs a single tool call and always returns a result.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := time.Now()

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		result := models.FailedToolResult(call, "Tool not found: "+call.Name)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	if msg := e.validateArguments(call); msg != "" {
		result := models.FailedToolResult(call, msg)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	// Acquire semaphore for backpressure.
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		result := models.FailedToolResult(call, "cancelled")
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	timeout := tool.MaxExecutionTime()
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}

	result := e.executeWithTimeout(ctx, tool, call, timeout)
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// ExecuteBatch runs a batch of tool calls, returning results in the same
// order as the input. Calls run concurrently when the configuration allows
// it, every involved tool supports parallel execution, and no two calls
// conflict on a mutated file path; conflicting calls are serialized in
// emitted order.
func (e *Executor) ExecuteBatch(ctx context.Context, calls []models.ToolCall) []models.ToolResult {
	if len(calls) == 0 {
		return []models.ToolResult{}
	}

	if !e.canParallelize(calls) {
		results := make([]models.ToolResult, len(calls))
		for i, call := range calls {
			results[i] = e.Execute(ctx, call)
		}
		return results
	}

	// Paths touched by any non-read-only call force a per-path chain; calls
	// on clean paths run fully parallel.
	dirty := e.dirtyPaths(calls)
	chains := make(map[string]chan struct{})

	results := make([]models.ToolResult, len(calls))
	var wg sync.WaitGroup

	for i, call := range calls {
		var waitOn chan struct{}
		var done chan struct{}
		if path := filePathOf(call); path != "" && dirty[path] {
			waitOn = chains[path]
			done = make(chan struct{})
			chains[path] = done
		}

		wg.Add(1)
		go func(idx int, tc models.ToolCall, waitOn, done chan struct{}) {
			defer wg.Done()
			if done != nil {
				defer close(done)
			}
			if waitOn != nil {
				select {
				case <-waitOn:
				case <-ctx.Done():
					results[idx] = models.FailedToolResult(tc, "cancelled")
					return
				}
			}
			results[idx] = e.Execute(ctx, tc)
		}(i, call, waitOn, done)
	}

	wg.Wait()
	return results
}

// canParallelize reports whether every call's tool exists and supports
// parallel execution.
func (e *Executor) canParallelize(calls []models.ToolCall) bool {
	if !e.config.AllowParallel || len(calls) < 2 {
		return false
	}
	for _, call := range calls {
		tool, ok := e.registry.Get(call.Name)
		if !ok || !tool.SupportsParallel() {
			return false
		}
	}
	return true
}

// dirtyPaths returns the file_path values touched by a non-read-only call.
func (e *Executor) dirtyPaths(calls []models.ToolCall) map[string]bool {
	dirty := make(map[string]bool)
	for _, call := range calls {
		path := filePathOf(call)
		if path == "" {
			continue
		}
		if tool, ok := e.registry.Get(call.Name); ok && !tool.IsReadOnly() {
			dirty[path] = true
		}
	}
	return dirty
}

func filePathOf(call models.ToolCall) string {
	if path := call.StringArg("file_path"); path != "" {
		return path
	}
	return call.StringArg("path")
}

// validateArguments checks the call arguments against the tool's compiled
// JSON Schema. Returns a non-empty message on failure.
func (e *Executor) validateArguments(call models.ToolCall) string {
	schema := e.registry.schemaOf(call.Name)
	if schema == nil {
		return ""
	}

	// Round-trip through JSON so numeric types match what the schema
	// validator expects.
	var decoded any
	if err := json.Unmarshal(call.ArgumentsJSON(), &decoded); err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Sprintf("invalid arguments for %s: %v", call.Name, err)
	}
	return ""
}

// executeWithTimeout runs the tool under a deadline, capturing panics.
func (e *Executor) executeWithTimeout(ctx context.Context, tool Tool, call models.ToolCall, timeout time.Duration) models.ToolResult {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan models.ToolResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				resultCh <- models.FailedToolResult(call, fmt.Sprintf("panic: %v\n%s", r, stack))
			}
		}()

		result, err := tool.Execute(execCtx, call)
		if err != nil {
			failed := models.FailedToolResult(call, err.Error())
			failed.Metadata = result.Metadata
			resultCh <- failed
			return
		}
		result.ToolCallID = call.ID
		if result.ToolName == "" {
			result.ToolName = call.Name
		}
		if !result.Success && result.Error == "" {
			result.Error = "tool execution failed"
		}
		resultCh <- result
	}()

	select {
	case result := <-resultCh:
		return result
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return models.FailedToolResult(call, "cancelled")
		}
		return models.FailedToolResult(call, fmt.Sprintf("timed out after %s", timeout))
	}
}
