package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/sage/internal/shell"
	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

func call(name string, args map[string]any) models.ToolCall {
	return models.ToolCall{ID: "c1", Name: name, Arguments: args}
}

func TestSchemasAreValidJSON(t *testing.T) {
	registry := tools.NewRegistry()
	RegisterAll(registry, t.TempDir())

	for _, tool := range registry.List() {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			t.Errorf("%s schema not valid JSON: %v", tool.Name(), err)
		}
		if schema["type"] != "object" {
			t.Errorf("%s schema type = %v, want object", tool.Name(), schema["type"])
		}
	}
}

func TestTaskDoneReturnsSummary(t *testing.T) {
	tool := NewTaskDone()

	result, err := tool.Execute(context.Background(), call(tools.NameTaskDone,
		map[string]any{"summary": "all wrapped up"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Output != "all wrapped up" {
		t.Errorf("result = %+v", result)
	}
}

func TestBashForeground(t *testing.T) {
	tool := NewBash(shell.NewRegistry(nil), t.TempDir())

	result, err := tool.Execute(context.Background(), call(tools.NameBash,
		map[string]any{"command": "echo hi"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(result.Output, "hi") {
		t.Errorf("output = %q", result.Output)
	}
	if result.ExitCode == nil || *result.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", result.ExitCode)
	}
}

func TestBashNonZeroExitIsFailedResult(t *testing.T) {
	tool := NewBash(shell.NewRegistry(nil), t.TempDir())

	result, err := tool.Execute(context.Background(), call(tools.NameBash,
		map[string]any{"command": "exit 2"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Error("non-zero exit must fail the result")
	}
	if result.ExitCode == nil || *result.ExitCode != 2 {
		t.Errorf("exit code = %v, want 2", result.ExitCode)
	}
}

func TestBashBackgroundLifecycle(t *testing.T) {
	registry := shell.NewRegistry(nil)
	bash := NewBash(registry, t.TempDir())
	output := NewBashOutput(registry)
	kill := NewKillShell(registry)

	started, err := bash.Execute(context.Background(), call(tools.NameBash,
		map[string]any{"command": "echo bg; sleep 30", "run_in_background": true}))
	if err != nil {
		t.Fatal(err)
	}
	shellID, _ := started.Metadata["shell_id"].(string)
	if shellID == "" {
		t.Fatal("background run must return a shell id")
	}

	// Give the reader a moment to capture the first line.
	time.Sleep(200 * time.Millisecond)

	read, err := output.Execute(context.Background(), call("bash_output",
		map[string]any{"shell_id": shellID}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(read.Output, "bg") {
		t.Errorf("output = %q, want the captured line", read.Output)
	}

	killed, err := kill.Execute(context.Background(), call("kill_shell",
		map[string]any{"shell_id": shellID}))
	if err != nil {
		t.Fatal(err)
	}
	if !killed.Success {
		t.Errorf("kill result = %+v", killed)
	}

	status, _ := registry.Status(shellID)
	if status.Kind != shell.StatusKilled {
		t.Errorf("status = %s, want killed", status.Kind)
	}
}

func TestWriteReadEditRoundTrip(t *testing.T) {
	dir := t.TempDir()
	write := NewWrite(dir)
	read := NewRead(dir)
	edit := NewEdit(dir)

	if _, err := write.Execute(context.Background(), call(tools.NameWrite,
		map[string]any{"file_path": "notes/a.txt", "content": "hello world"})); err != nil {
		t.Fatal(err)
	}

	readResult, err := read.Execute(context.Background(), call(tools.NameRead,
		map[string]any{"file_path": "notes/a.txt"}))
	if err != nil {
		t.Fatal(err)
	}
	if readResult.Output != "hello world" {
		t.Errorf("read = %q", readResult.Output)
	}
	if path, _ := readResult.Metadata["file_path"].(string); !filepath.IsAbs(path) {
		t.Errorf("metadata file_path = %q, want resolved absolute path", path)
	}

	if _, err := edit.Execute(context.Background(), call(tools.NameEdit,
		map[string]any{"file_path": "notes/a.txt", "old_string": "world", "new_string": "sage"})); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "notes/a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello sage" {
		t.Errorf("file = %q, want %q", data, "hello sage")
	}
}

func TestEditRejectsAmbiguousMatch(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x x"), 0o644); err != nil {
		t.Fatal(err)
	}

	edit := NewEdit(dir)
	_, err := edit.Execute(context.Background(), call(tools.NameEdit,
		map[string]any{"file_path": "a.txt", "old_string": "x", "new_string": "y"}))
	if err == nil || !strings.Contains(err.Error(), "2 times") {
		t.Errorf("err = %v, want ambiguity rejection", err)
	}
}

func TestReadOnlyDeclarations(t *testing.T) {
	registry := tools.NewRegistry()
	RegisterAll(registry, t.TempDir())

	wantReadOnly := map[string]bool{
		tools.NameRead:         true,
		tools.NameTaskDone:     true,
		tools.NameExitPlanMode: true,
		"bash_output":          true,
		tools.NameWrite:        false,
		tools.NameEdit:         false,
		tools.NameBash:         false,
		"kill_shell":           false,
		tools.NameTask:         false,
	}
	for name, want := range wantReadOnly {
		tool, ok := registry.Get(name)
		if !ok {
			t.Errorf("tool %s not registered", name)
			continue
		}
		if tool.IsReadOnly() != want {
			t.Errorf("%s IsReadOnly = %v, want %v", name, tool.IsReadOnly(), want)
		}
	}
}
