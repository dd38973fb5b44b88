// Package tools provides the tool abstraction, the name-keyed registry, and
// the concurrent executor that dispatches LLM tool calls.
package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/haasonsaas/sage/internal/llm"
	"github.com/haasonsaas/sage/pkg/models"
)

// Tool defines the interface for executable agent tools.
//
// Implementations must be safe for concurrent use; the executor may run the
// same tool for several calls at once when the tool supports parallel
// execution.
type Tool interface {
	// Name returns the unique tool name (case-sensitive).
	Name() string

	// Description returns a natural language description of what the tool does.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Execute runs the tool. Failures are returned as an error; the executor
	// folds them into a failed ToolResult so they reach the model rather than
	// the caller.
	Execute(ctx context.Context, call models.ToolCall) (models.ToolResult, error)

	// SupportsParallel reports whether calls to this tool may run
	// concurrently with other calls.
	SupportsParallel() bool

	// IsReadOnly reports whether the tool never mutates the environment.
	IsReadOnly() bool

	// MaxExecutionTime returns the per-call timeout. Zero means the
	// executor's default applies.
	MaxExecutionTime() time.Duration
}

// SchemaFor builds the llm.ToolSchema advertised to providers for a tool.
func SchemaFor(tool Tool) llm.ToolSchema {
	return llm.ToolSchema{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Schema(),
	}
}
