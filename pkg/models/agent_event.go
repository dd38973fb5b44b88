package models

import "time"

// AgentEventType identifies the kind of lifecycle event published on the bus.
type AgentEventType string

const (
	EventAgentStarted        AgentEventType = "agent.started"
	EventAgentStateChanged   AgentEventType = "agent.state_changed"
	EventAgentIterationStart AgentEventType = "agent.iteration_start"
	EventAgentCompleted      AgentEventType = "agent.completed"

	EventToolCallStart    AgentEventType = "tool.call_start"
	EventToolCallProgress AgentEventType = "tool.call_progress"
	EventToolCallComplete AgentEventType = "tool.call_complete"

	EventStreamConnected    AgentEventType = "stream.connected"
	EventStreamDisconnected AgentEventType = "stream.disconnected"
	EventTextDelta          AgentEventType = "stream.text_delta"
	EventTextComplete       AgentEventType = "stream.text_complete"

	EventSessionCreated AgentEventType = "session.created"
	EventSessionEnded   AgentEventType = "session.ended"

	EventError     AgentEventType = "error"
	EventWarning   AgentEventType = "warning"
	EventShutdown  AgentEventType = "shutdown"
	EventHeartbeat AgentEventType = "heartbeat"
)

// AgentEvent is the unified event model for the broadcast bus.
//
// Design principles:
//   - Versioned and forward-compatible (add fields, don't rename/remove)
//   - Single Type discriminator with optional payload pointers
//   - Monotonic Sequence for ordering guarantees across goroutines
type AgentEvent struct {
	// Version for forward compatibility. Current version: 1.
	Version int `json:"version"`

	// Type identifies the kind of event.
	Type AgentEventType `json:"type"`

	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// Sequence is monotonic within a publisher for ordering guarantees.
	Sequence uint64 `json:"seq"`

	// Exactly one payload should be non-nil for a given Type.
	Agent   *AgentEventPayload   `json:"agent,omitempty"`
	Tool    *ToolEventPayload    `json:"tool,omitempty"`
	Stream  *StreamEventPayload  `json:"stream,omitempty"`
	Session *SessionEventPayload `json:"session,omitempty"`
	Problem *ProblemEventPayload `json:"problem,omitempty"`
}

// AgentEventPayload carries agent lifecycle details.
type AgentEventPayload struct {
	AgentID   string `json:"agent_id,omitempty"`
	Task      string `json:"task,omitempty"`
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
	Success   bool   `json:"success,omitempty"`
}

// ToolEventPayload carries tool call progress details.
type ToolEventPayload struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
	Success bool   `json:"success,omitempty"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StreamEventPayload carries streaming text details.
type StreamEventPayload struct {
	Chunk string `json:"chunk,omitempty"`
	Full  string `json:"full,omitempty"`
}

// SessionEventPayload carries session lifecycle details.
type SessionEventPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason,omitempty"`
}

// ProblemEventPayload carries error and warning details.
type ProblemEventPayload struct {
	Source      string `json:"source"`
	Message     string `json:"message"`
	Recoverable bool   `json:"recoverable,omitempty"`
}
