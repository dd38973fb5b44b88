package models

import "encoding/json"

// ToolCall is a structured request from the LLM to invoke a named tool.
type ToolCall struct {
	// ID is the opaque call identifier chosen by the LLM. Unique within a
	// step.
	ID string `json:"id"`

	// Name is the tool name.
	Name string `json:"name"`

	// Arguments holds the structured call arguments.
	Arguments map[string]any `json:"arguments"`
}

// StringArg returns the named argument as a string, or "" when absent or not
// a string.
func (c ToolCall) StringArg(key string) string {
	if c.Arguments == nil {
		return ""
	}
	if s, ok := c.Arguments[key].(string); ok {
		return s
	}
	return ""
}

// BoolArg returns the named argument as a bool.
func (c ToolCall) BoolArg(key string) bool {
	if c.Arguments == nil {
		return false
	}
	b, _ := c.Arguments[key].(bool)
	return b
}

// ArgumentsJSON serializes the arguments map for providers that expect a
// JSON string.
func (c ToolCall) ArgumentsJSON() json.RawMessage {
	if c.Arguments == nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// ToolResult is the structured response from a tool execution.
type ToolResult struct {
	// ToolCallID correlates the result with its originating call.
	ToolCallID string `json:"tool_call_id"`

	// ToolName is the name of the tool that produced the result.
	ToolName string `json:"tool_name"`

	// Success indicates whether the execution succeeded.
	Success bool `json:"success"`

	// Output is the tool output on success (may be set on failure too).
	Output string `json:"output,omitempty"`

	// Error is the failure description. Always set when Success is false.
	Error string `json:"error,omitempty"`

	// ExitCode is the process exit code for subprocess-backed tools.
	ExitCode *int `json:"exit_code,omitempty"`

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// Metadata carries structured result annotations such as file_path,
	// working_directory, or pattern.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FailedToolResult builds a failed result for the given call.
func FailedToolResult(call ToolCall, errMsg string) ToolResult {
	return ToolResult{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Success:    false,
		Error:      errMsg,
	}
}

// Content returns the text fed back to the LLM for this result.
func (r ToolResult) Content() string {
	if !r.Success && r.Error != "" {
		return r.Error
	}
	return r.Output
}
