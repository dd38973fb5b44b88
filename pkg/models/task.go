// Package models provides domain types for the Sage agent core.
package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is the user-level unit of work described by a natural-language prompt.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// Description is the natural-language task prompt.
	Description string `json:"description"`

	// WorkingDir is the directory the task operates in.
	WorkingDir string `json:"working_dir"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`

	// Metadata carries arbitrary task annotations.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewTask creates a pending task with a fresh ID.
func NewTask(description, workingDir string) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Description: description,
		WorkingDir:  workingDir,
		Status:      TaskStatusPending,
		CreatedAt:   time.Now(),
	}
}
