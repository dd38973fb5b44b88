package shell

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Summary is a display-friendly snapshot of a background task.
type Summary struct {
	ShellID    string  `json:"shell_id"`
	Command    string  `json:"command"`
	Status     string  `json:"status"`
	UptimeSecs float64 `json:"uptime_secs"`
}

// Registry tracks background shell tasks by shell id.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	nextID atomic.Int64
	logger *slog.Logger
}

// NewRegistry creates an empty background task registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tasks:  make(map[string]*Task),
		logger: logger.With("component", "background_registry"),
	}
}

// GenerateShellID returns the next monotonic shell id ("shell_N").
func (r *Registry) GenerateShellID() string {
	return "shell_" + strconv.FormatInt(r.nextID.Add(1), 10)
}

// Spawn starts a background shell task and registers it. The returned shell
// id is the handle for all later operations.
func (r *Registry) Spawn(ctx context.Context, command, workingDir string) (string, error) {
	shellID := r.GenerateShellID()
	task, err := startTask(ctx, shellID, command, workingDir)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.tasks[shellID] = task
	r.mu.Unlock()

	r.logger.Debug("spawned background task",
		"shell_id", shellID,
		"pid", task.PID(),
		"command", command)
	return shellID, nil
}

// Get returns a task by shell id.
func (r *Registry) Get(shellID string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	task, ok := r.tasks[shellID]
	return task, ok
}

// Exists reports whether a shell id is registered.
func (r *Registry) Exists(shellID string) bool {
	_, ok := r.Get(shellID)
	return ok
}

// Remove drops a task from the registry without killing it.
func (r *Registry) Remove(shellID string) (*Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[shellID]
	if ok {
		delete(r.tasks, shellID)
	}
	return task, ok
}

// Count returns the number of registered tasks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Status returns the status of a task.
func (r *Registry) Status(shellID string) (Status, bool) {
	task, ok := r.Get(shellID)
	if !ok {
		return Status{}, false
	}
	return task.Status(), true
}

// GetOutput returns the full accumulated output of a task.
func (r *Registry) GetOutput(shellID string) (stdout, stderr string, ok bool) {
	task, found := r.Get(shellID)
	if !found {
		return "", "", false
	}
	stdout, stderr = task.Output()
	return stdout, stderr, true
}

// GetIncrementalOutput returns output since the last incremental read and
// advances the task's cursors.
func (r *Registry) GetIncrementalOutput(shellID string) (stdout, stderr string, ok bool) {
	task, found := r.Get(shellID)
	if !found {
		return "", "", false
	}
	stdout, stderr = task.IncrementalOutput()
	return stdout, stderr, true
}

// Kill cancels a task, waits briefly for graceful shutdown, then forces
// termination. Returns false when the shell id is unknown.
func (r *Registry) Kill(shellID string) bool {
	task, ok := r.Get(shellID)
	if !ok {
		return false
	}
	task.Kill()
	r.logger.Debug("killed background task", "shell_id", shellID)
	return true
}

// KillAll kills every registered task.
func (r *Registry) KillAll() {
	for _, summary := range r.ListSummaries() {
		r.Kill(summary.ShellID)
	}
}

// CleanupOldTasks drops non-running tasks older than maxAge and returns how
// many were removed.
func (r *Registry) CleanupOldTasks(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, task := range r.tasks {
		if task.Status().Kind == StatusRunning {
			continue
		}
		if task.StartedAt().Before(cutoff) {
			delete(r.tasks, id)
			removed++
			r.logger.Debug("cleaned up old background task", "shell_id", id)
		}
	}
	return removed
}

// ListSummaries returns snapshots of every task, sorted by shell id for
// deterministic display.
func (r *Registry) ListSummaries() []Summary {
	r.mu.RLock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, task := range r.tasks {
		tasks = append(tasks, task)
	}
	r.mu.RUnlock()

	summaries := make([]Summary, 0, len(tasks))
	for _, task := range tasks {
		summaries = append(summaries, Summary{
			ShellID:    task.ShellID,
			Command:    task.Command,
			Status:     task.Status().String(),
			UptimeSecs: task.UptimeSecs(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ShellID < summaries[j].ShellID
	})
	return summaries
}

var (
	globalMu       sync.Mutex
	globalRegistry *Registry
)

// Global returns the process-wide background task registry, initializing it
// on first use.
func Global() *Registry {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		globalRegistry = NewRegistry(nil)
	}
	return globalRegistry
}

// ResetGlobal kills all tasks and clears the process-wide registry. Called
// on Shutdown.
func ResetGlobal() {
	globalMu.Lock()
	registry := globalRegistry
	globalRegistry = nil
	globalMu.Unlock()

	if registry != nil {
		registry.KillAll()
	}
}
