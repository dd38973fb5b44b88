package shell

import (
	"context"
	"strings"
	"testing"
	"time"
)

func waitTerminal(t *testing.T, task *Task) Status {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("task did not terminate")
	}
	return task.Status()
}

func TestGenerateShellIDMonotonic(t *testing.T) {
	registry := NewRegistry(nil)

	if id := registry.GenerateShellID(); id != "shell_1" {
		t.Errorf("first id = %q, want shell_1", id)
	}
	if id := registry.GenerateShellID(); id != "shell_2" {
		t.Errorf("second id = %q, want shell_2", id)
	}
	if id := registry.GenerateShellID(); id != "shell_3" {
		t.Errorf("third id = %q, want shell_3", id)
	}
}

func TestSpawnCapturesOutputAndExit(t *testing.T) {
	registry := NewRegistry(nil)

	shellID, err := registry.Spawn(context.Background(), "echo hello; echo oops >&2", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	task, ok := registry.Get(shellID)
	if !ok {
		t.Fatal("spawned task must be registered")
	}
	status := waitTerminal(t, task)

	if status.Kind != StatusCompleted {
		t.Fatalf("status = %s, want completed", status.Kind)
	}
	if status.ExitCode == nil || *status.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", status.ExitCode)
	}

	stdout, stderr, _ := registry.GetOutput(shellID)
	if !strings.Contains(stdout, "hello") {
		t.Errorf("stdout = %q, want hello", stdout)
	}
	if !strings.Contains(stderr, "oops") {
		t.Errorf("stderr = %q, want oops", stderr)
	}
}

func TestNonZeroExitIsCompletedWithCode(t *testing.T) {
	registry := NewRegistry(nil)

	shellID, err := registry.Spawn(context.Background(), "exit 3", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	task, _ := registry.Get(shellID)
	status := waitTerminal(t, task)

	if status.Kind != StatusCompleted {
		t.Fatalf("status = %s, want completed", status.Kind)
	}
	if status.ExitCode == nil || *status.ExitCode != 3 {
		t.Errorf("exit code = %v, want 3", status.ExitCode)
	}
}

func TestIncrementalCursorsNeverMoveBackward(t *testing.T) {
	registry := NewRegistry(nil)

	shellID, err := registry.Spawn(context.Background(), "echo one; echo two", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	task, _ := registry.Get(shellID)
	waitTerminal(t, task)

	first, _, _ := registry.GetIncrementalOutput(shellID)
	second, _, _ := registry.GetIncrementalOutput(shellID)

	if !strings.Contains(first, "one") || !strings.Contains(first, "two") {
		t.Errorf("first incremental read = %q, want full output", first)
	}
	if second != "" {
		t.Errorf("second incremental read = %q, want empty (cursor advanced)", second)
	}

	full, _, _ := registry.GetOutput(shellID)
	if !strings.Contains(full, "one") {
		t.Error("full read must not be affected by incremental cursors")
	}
}

func TestKillLongRunningTask(t *testing.T) {
	registry := NewRegistry(nil)

	shellID, err := registry.Spawn(context.Background(), "sleep 60", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if !registry.Kill(shellID) {
		t.Fatal("kill must find the task")
	}

	status, _ := registry.Status(shellID)
	if status.Kind != StatusKilled {
		t.Errorf("status = %s, want killed", status.Kind)
	}
}

func TestTerminalStatusIsSticky(t *testing.T) {
	registry := NewRegistry(nil)

	shellID, err := registry.Spawn(context.Background(), "true", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	task, _ := registry.Get(shellID)
	waitTerminal(t, task)

	before, _ := registry.Status(shellID)
	registry.Kill(shellID) // killing a finished task must not change its status
	after, _ := registry.Status(shellID)

	if before.Kind != after.Kind {
		t.Errorf("status changed from %s to %s after terminal", before.Kind, after.Kind)
	}
}

func TestCleanupOldTasks(t *testing.T) {
	registry := NewRegistry(nil)

	doneID, err := registry.Spawn(context.Background(), "true", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	task, _ := registry.Get(doneID)
	waitTerminal(t, task)

	runningID, err := registry.Spawn(context.Background(), "sleep 60", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer registry.Kill(runningID)

	removed := registry.CleanupOldTasks(0)
	if removed != 1 {
		t.Errorf("removed = %d, want 1 (only the finished task)", removed)
	}
	if registry.Exists(doneID) {
		t.Error("finished task must be cleaned up")
	}
	if !registry.Exists(runningID) {
		t.Error("running task must survive cleanup")
	}
}

func TestListSummariesSorted(t *testing.T) {
	registry := NewRegistry(nil)

	for i := 0; i < 3; i++ {
		if _, err := registry.Spawn(context.Background(), "true", t.TempDir()); err != nil {
			t.Fatal(err)
		}
	}

	summaries := registry.ListSummaries()
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}
	for i := 1; i < len(summaries); i++ {
		if summaries[i-1].ShellID > summaries[i].ShellID {
			t.Errorf("summaries not sorted: %q > %q", summaries[i-1].ShellID, summaries[i].ShellID)
		}
	}
}
