package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState represents the lifecycle state of a session.
type SessionState string

const (
	SessionStateActive    SessionState = "active"
	SessionStatePaused    SessionState = "paused"
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
	SessionStateCancelled SessionState = "cancelled"
)

// Session records a conversation and its bookkeeping across executions.
//
// UpdatedAt is monotonically non-decreasing. Mutations go through Touch so
// the invariant holds even when the wall clock steps backward.
type Session struct {
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	WorkingDir string            `json:"working_dir"`
	Messages   []Message         `json:"messages"`
	Usage      TokenUsage        `json:"usage"`
	State      SessionState      `json:"state"`
	Name       string            `json:"name,omitempty"`
	Model      string            `json:"model,omitempty"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// NewSession creates an active session with a fresh ID.
func NewSession(workingDir string) *Session {
	now := time.Now()
	return &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		WorkingDir: workingDir,
		State:      SessionStateActive,
	}
}

// Touch advances UpdatedAt without ever moving it backward.
func (s *Session) Touch() {
	now := time.Now()
	if now.After(s.UpdatedAt) {
		s.UpdatedAt = now
	}
}

// AppendMessage adds a message to the conversation and touches the session.
func (s *Session) AppendMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.Touch()
}

// SetState transitions the session state and touches the session.
func (s *Session) SetState(state SessionState) {
	s.State = state
	s.Touch()
}

// IsTerminal reports whether the session reached a final state.
func (s *Session) IsTerminal() bool {
	switch s.State {
	case SessionStateCompleted, SessionStateFailed, SessionStateCancelled:
		return true
	default:
		return false
	}
}
