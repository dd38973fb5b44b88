package tools

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haasonsaas/sage/pkg/models"
)

type stubTool struct {
	name     string
	schema   string
	readOnly bool
	parallel bool
	maxTime  time.Duration
	execute  func(ctx context.Context, call models.ToolCall) (models.ToolResult, error)
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub" }
func (t *stubTool) Schema() json.RawMessage {
	if t.schema == "" {
		return json.RawMessage(`{"type":"object"}`)
	}
	return json.RawMessage(t.schema)
}
func (t *stubTool) Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
	if t.execute != nil {
		return t.execute(ctx, call)
	}
	return models.ToolResult{ToolCallID: call.ID, ToolName: t.name, Success: true, Output: "ok"}, nil
}
func (t *stubTool) SupportsParallel() bool          { return t.parallel }
func (t *stubTool) IsReadOnly() bool                { return t.readOnly }
func (t *stubTool) MaxExecutionTime() time.Duration { return t.maxTime }

func TestExecuteToolNotFound(t *testing.T) {
	executor := NewExecutor(NewRegistry(), nil)

	result := executor.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "missing"})

	if result.Success {
		t.Fatal("unknown tool must fail")
	}
	if !strings.Contains(result.Error, "Tool not found") {
		t.Errorf("error = %q, want tool-not-found", result.Error)
	}
}

func TestExecuteTimeout(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name:    "hang",
		maxTime: 50 * time.Millisecond,
		execute: func(ctx context.Context, call models.ToolCall) (models.ToolResult, error) {
			<-make(chan struct{}) // never returns
			return models.ToolResult{}, nil
		},
	})
	executor := NewExecutor(registry, nil)

	start := time.Now()
	result := executor.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "hang"})

	if result.Success {
		t.Fatal("hung tool must fail")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("error = %q, want timeout", result.Error)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %s, expected prompt cancellation", elapsed)
	}
	if result.DurationMs < 0 {
		t.Error("duration must be recorded")
	}
}

func TestExecuteBatchEmpty(t *testing.T) {
	executor := NewExecutor(NewRegistry(), nil)

	results := executor.ExecuteBatch(context.Background(), nil)
	if results == nil || len(results) != 0 {
		t.Fatalf("empty batch must return an empty (non-nil) slice, got %v", results)
	}
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name:     "echo",
		parallel: true,
		readOnly: true,
		execute: func(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
			return models.ToolResult{
				ToolCallID: call.ID,
				ToolName:   "echo",
				Success:    true,
				Output:     call.StringArg("value"),
			}, nil
		},
	})
	executor := NewExecutor(registry, nil)

	calls := []models.ToolCall{
		{ID: "c1", Name: "echo", Arguments: map[string]any{"value": "a"}},
		{ID: "c2", Name: "echo", Arguments: map[string]any{"value": "b"}},
		{ID: "c3", Name: "echo", Arguments: map[string]any{"value": "c"}},
	}
	results := executor.ExecuteBatch(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Output != want {
			t.Errorf("results[%d].Output = %q, want %q", i, results[i].Output, want)
		}
		if results[i].ToolCallID != calls[i].ID {
			t.Errorf("results[%d].ToolCallID = %q, want %q", i, results[i].ToolCallID, calls[i].ID)
		}
	}
}

func TestExecuteBatchSerializesConflictingPaths(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0

	track := func(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return models.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Success: true}, nil
	}

	registry := NewRegistry()
	registry.Register(&stubTool{name: "writer", parallel: true, execute: track})
	executor := NewExecutor(registry, nil)

	calls := []models.ToolCall{
		{ID: "c1", Name: "writer", Arguments: map[string]any{"file_path": "/tmp/same"}},
		{ID: "c2", Name: "writer", Arguments: map[string]any{"file_path": "/tmp/same"}},
	}
	results := executor.ExecuteBatch(context.Background(), calls)

	for _, result := range results {
		if !result.Success {
			t.Fatalf("unexpected failure: %+v", result)
		}
	}
	if maxActive != 1 {
		t.Errorf("max concurrent writers on the same path = %d, want 1", maxActive)
	}
}

func TestExecuteBatchParallelOnDistinctPaths(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0

	track := func(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return models.ToolResult{ToolCallID: call.ID, ToolName: call.Name, Success: true}, nil
	}

	registry := NewRegistry()
	registry.Register(&stubTool{name: "writer", parallel: true, execute: track})
	executor := NewExecutor(registry, nil)

	calls := []models.ToolCall{
		{ID: "c1", Name: "writer", Arguments: map[string]any{"file_path": "/tmp/a"}},
		{ID: "c2", Name: "writer", Arguments: map[string]any{"file_path": "/tmp/b"}},
	}
	executor.ExecuteBatch(context.Background(), calls)

	if maxActive < 2 {
		t.Errorf("max concurrency = %d, want 2 for distinct paths", maxActive)
	}
}

func TestExecuteBatchSerializesWhenToolForbidsParallel(t *testing.T) {
	var mu sync.Mutex
	active := 0
	maxActive := 0

	registry := NewRegistry()
	registry.Register(&stubTool{
		name:     "serial",
		parallel: false,
		execute: func(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(10 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
			return models.ToolResult{ToolCallID: call.ID, ToolName: "serial", Success: true}, nil
		},
	})
	executor := NewExecutor(registry, nil)

	calls := []models.ToolCall{
		{ID: "c1", Name: "serial", Arguments: map[string]any{}},
		{ID: "c2", Name: "serial", Arguments: map[string]any{}},
	}
	executor.ExecuteBatch(context.Background(), calls)

	if maxActive != 1 {
		t.Errorf("max concurrency = %d, want 1 when the tool forbids parallel", maxActive)
	}
}

func TestSchemaValidationRejectsBadArguments(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "typed",
		schema: `{
			"type": "object",
			"properties": {"count": {"type": "integer"}},
			"required": ["count"]
		}`,
		parallel: true,
	})
	executor := NewExecutor(registry, nil)

	result := executor.Execute(context.Background(), models.ToolCall{
		ID:        "c1",
		Name:      "typed",
		Arguments: map[string]any{"count": "not a number"},
	})

	if result.Success {
		t.Fatal("schema-invalid arguments must fail")
	}
	if !strings.Contains(result.Error, "invalid arguments") {
		t.Errorf("error = %q, want invalid-arguments", result.Error)
	}
}

func TestPanicBecomesFailedResult(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "bomb",
		execute: func(_ context.Context, _ models.ToolCall) (models.ToolResult, error) {
			panic("boom")
		},
	})
	executor := NewExecutor(registry, nil)

	result := executor.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "bomb"})

	if result.Success {
		t.Fatal("panicking tool must fail")
	}
	if !strings.Contains(result.Error, "panic") {
		t.Errorf("error = %q, want panic capture", result.Error)
	}
}

func TestFailedResultAlwaysHasError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&stubTool{
		name: "sad",
		execute: func(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
			return models.ToolResult{ToolCallID: call.ID, ToolName: "sad", Success: false}, nil
		},
	})
	executor := NewExecutor(registry, nil)

	result := executor.Execute(context.Background(), models.ToolCall{ID: "c1", Name: "sad"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error == "" {
		t.Error("Success=false requires a non-empty Error")
	}
}
