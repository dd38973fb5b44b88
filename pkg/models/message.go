package models

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is a single element of the canonical conversation.
//
// The canonical conversation is provider-neutral. Provider-specific shapes
// (OpenAI, Anthropic, Google) are derived from it just before each LLM call
// and never written back.
type Message struct {
	// Role indicates who sent the message.
	Role Role `json:"role"`

	// Content is the text content (may be empty for tool-call-only messages).
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool execution requests. Assistant messages only.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the assistant tool call it
	// answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// ToolName is the tool that produced a tool-role message. Some providers
	// require it alongside the call id.
	ToolName string `json:"tool_name,omitempty"`

	// CacheEphemeral marks the message as a prompt-cache breakpoint for
	// providers that support ephemeral cache control.
	CacheEphemeral bool `json:"cache_ephemeral,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message with optional tool calls.
func AssistantMessage(content string, toolCalls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// ToolMessage builds a tool-role message answering the given tool call.
func ToolMessage(toolCallID, toolName, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, ToolName: toolName}
}

// IsSystem reports whether the message carries the system role.
func (m Message) IsSystem() bool {
	return m.Role == RoleSystem
}
