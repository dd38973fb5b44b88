// Package llm defines the client contract between the step loop and LLM
// providers, plus provider-specific request shaping.
//
// The engine owns message shaping; the transport owns nothing but bytes.
// Shaping derives provider request types from the canonical conversation and
// never mutates it.
package llm

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/sage/pkg/models"
)

// ToolSchema describes a tool to the model.
type ToolSchema struct {
	// Name is the unique tool name.
	Name string `json:"name"`

	// Description helps the model decide when to use the tool.
	Description string `json:"description"`

	// Parameters is the JSON Schema for the tool arguments.
	Parameters json.RawMessage `json:"parameters"`
}

// Response is the provider-neutral result of one chat call.
type Response struct {
	// Content is the assistant text.
	Content string `json:"content"`

	// ToolCalls are the tool invocations requested by the model, in emission
	// order.
	ToolCalls []models.ToolCall `json:"tool_calls,omitempty"`

	// FinishReason is the provider's stop reason, if any.
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is the token accounting for this call.
	Usage *models.TokenUsage `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model requested any tool invocations.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Client is the interface the step loop consumes. Implementations are safe
// for concurrent use.
type Client interface {
	// Chat sends the conversation and tool schemas, returning the model's
	// response. Blocking; must respect ctx cancellation.
	Chat(ctx context.Context, messages []models.Message, tools []ToolSchema) (*Response, error)

	// Provider returns the provider name used for rate limiting and error
	// attribution ("anthropic", "openai", "google").
	Provider() string
}

// IsNaturalEnd reports whether a finish reason signals a conversational stop.
// Covers end_turn (Anthropic), stop (OpenAI and compatibles), and STOP
// (Google).
func IsNaturalEnd(reason string) bool {
	switch reason {
	case "end_turn", "stop", "STOP":
		return true
	default:
		return false
	}
}

// IsToolUse reports whether a finish reason signals pending tool calls.
func IsToolUse(reason string) bool {
	switch reason {
	case "tool_use", "tool_calls", "function_call":
		return true
	default:
		return false
	}
}
