package agent

import (
	"strings"
	"testing"

	"github.com/haasonsaas/sage/pkg/models"
)

func TestClassifyTask(t *testing.T) {
	tests := []struct {
		description string
		want        TaskType
	}{
		{"write a readme for the project", TaskDocumentation},
		{"analyze why the cache misses", TaskResearch},
		{"what is the purpose of this module", TaskResearch},
		{"fix the login bug", TaskBugFix},
		{"implement a rate limiter", TaskCodeImplementation},
		{"create a website for the docs", TaskCodeImplementation},
		{"hello there", TaskGeneral},
	}
	for _, tt := range tests {
		if got := ClassifyTask(tt.description); got != tt.want {
			t.Errorf("ClassifyTask(%q) = %s, want %s", tt.description, got, tt.want)
		}
	}
}

func TestRequiresCode(t *testing.T) {
	if !TaskCodeImplementation.RequiresCode() || !TaskBugFix.RequiresCode() {
		t.Error("implementation and bug-fix tasks require code")
	}
	if TaskResearch.RequiresCode() || TaskDocumentation.RequiresCode() || TaskGeneral.RequiresCode() {
		t.Error("research, documentation, and general tasks do not require code")
	}
}

func TestFileTrackerCountsByToolName(t *testing.T) {
	tracker := NewFileTracker()

	tracker.Track(models.ToolResult{
		ToolName: "write", Success: true,
		Metadata: map[string]any{"file_path": "/a.go"},
	})
	tracker.Track(models.ToolResult{
		ToolName: "edit", Success: true,
		Metadata: map[string]any{"file_path": "/b.go"},
	})
	tracker.Track(models.ToolResult{
		ToolName: "read", Success: true,
		Metadata: map[string]any{"file_path": "/c.go"},
	})
	// Failed results are ignored.
	tracker.Track(models.ToolResult{
		ToolName: "write", Success: false,
		Metadata: map[string]any{"file_path": "/d.go"},
	})

	if tracker.CreatedCount() != 1 || tracker.ModifiedCount() != 1 {
		t.Errorf("created = %d, modified = %d, want 1 and 1",
			tracker.CreatedCount(), tracker.ModifiedCount())
	}
	if !tracker.HasFileOperations() {
		t.Error("tracker must report file operations")
	}
}

func TestCompletionWarningOnlyWhenCodeExpected(t *testing.T) {
	checker := NewCompletionChecker("implement a parser")
	if warning := checker.CompletionWarning(); warning == "" {
		t.Error("code task with no file operations must warn")
	}

	checker.Observe(models.ToolResult{
		ToolName: "write", Success: true,
		Metadata: map[string]any{"file_path": "/parser.go"},
	})
	if warning := checker.CompletionWarning(); warning != "" {
		t.Errorf("warning = %q, want none after a write", warning)
	}

	research := NewCompletionChecker("research parser designs")
	if warning := research.CompletionWarning(); warning != "" {
		t.Errorf("research task must not warn, got %q", warning)
	}
}

func TestSummaryIncludesFileCounts(t *testing.T) {
	checker := NewCompletionChecker("implement a parser")
	checker.Observe(models.ToolResult{
		ToolName: "write", Success: true,
		Metadata: map[string]any{"file_path": "/parser.go"},
	})

	summary := checker.Summary("built the parser")
	if !strings.Contains(summary, "1 files created") {
		t.Errorf("summary = %q, want file counts", summary)
	}
}
