package agent

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

// TaskType classifies what kind of deliverable a task description implies.
// The classification is advisory: it annotates warnings and never blocks
// completion.
type TaskType string

const (
	TaskCodeImplementation TaskType = "code_implementation"
	TaskBugFix             TaskType = "bug_fix"
	TaskResearch           TaskType = "research"
	TaskDocumentation      TaskType = "documentation"
	TaskGeneral            TaskType = "general"
)

// phrase lists for the bag-of-phrases classifier. Order matters: the first
// matching category wins.
var (
	documentationPhrases = []string{"文档", "readme", "document", "write doc"}
	researchPhrases      = []string{
		"分析", "研究", "调查",
		"investigate", "analyze", "research", "explain", "what is",
	}
	bugFixPhrases = []string{"修复", "fix", "bug", "error", "issue", "problem"}
	codePhrases   = []string{
		"设计", "创建", "实现", "开发", "做", "写",
		"design", "create", "implement", "build", "make", "develop", "add",
		"网站", "website", "app", "应用",
	}
)

// ClassifyTask determines the task type from its description.
func ClassifyTask(description string) TaskType {
	lower := strings.ToLower(description)

	if containsAny(lower, documentationPhrases) {
		return TaskDocumentation
	}
	if containsAny(lower, researchPhrases) {
		return TaskResearch
	}
	if containsAny(lower, bugFixPhrases) {
		return TaskBugFix
	}
	if containsAny(lower, codePhrases) {
		return TaskCodeImplementation
	}
	return TaskGeneral
}

func containsAny(s string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(s, phrase) {
			return true
		}
	}
	return false
}

// RequiresCode reports whether the task type implies file modifications.
func (t TaskType) RequiresCode() bool {
	return t == TaskCodeImplementation || t == TaskBugFix
}

// FileTracker records file operations observed in tool results.
type FileTracker struct {
	created  map[string]struct{}
	modified map[string]struct{}
	read     map[string]struct{}
}

// NewFileTracker creates an empty tracker.
func NewFileTracker() *FileTracker {
	return &FileTracker{
		created:  make(map[string]struct{}),
		modified: make(map[string]struct{}),
		read:     make(map[string]struct{}),
	}
}

// Track inspects a successful tool result for a file_path metadata entry
// and records the operation by tool name.
func (t *FileTracker) Track(result models.ToolResult) {
	if !result.Success || result.Metadata == nil {
		return
	}
	path, _ := result.Metadata["file_path"].(string)
	if path == "" {
		return
	}

	switch strings.ToLower(result.ToolName) {
	case "write":
		t.created[path] = struct{}{}
	case "edit", "multiedit":
		t.modified[path] = struct{}{}
	case "read":
		t.read[path] = struct{}{}
	}
}

// HasFileOperations reports whether any file was created or modified.
func (t *FileTracker) HasFileOperations() bool {
	return len(t.created) > 0 || len(t.modified) > 0
}

// CreatedCount returns the number of distinct files created.
func (t *FileTracker) CreatedCount() int { return len(t.created) }

// ModifiedCount returns the number of distinct files modified.
func (t *FileTracker) ModifiedCount() int { return len(t.modified) }

// CompletionChecker verifies task completion signals and annotates warnings.
type CompletionChecker struct {
	taskType TaskType
	tracker  *FileTracker
}

// NewCompletionChecker classifies the task and prepares tracking.
func NewCompletionChecker(description string) *CompletionChecker {
	return &CompletionChecker{
		taskType: ClassifyTask(description),
		tracker:  NewFileTracker(),
	}
}

// TaskType returns the detected task type.
func (c *CompletionChecker) TaskType() TaskType {
	return c.taskType
}

// Observe feeds a tool result into the file tracker.
func (c *CompletionChecker) Observe(result models.ToolResult) {
	c.tracker.Track(result)
}

// TaskDoneResult finds a successful task_done result in the slice, if any.
func TaskDoneResult(results []models.ToolResult) (models.ToolResult, bool) {
	for _, result := range results {
		if result.ToolName == tools.NameTaskDone && result.Success {
			return result, true
		}
	}
	return models.ToolResult{}, false
}

// CompletionWarning returns a non-empty warning when the task was declared
// done but the classifier expected code changes that never happened.
func (c *CompletionChecker) CompletionWarning() string {
	if !c.taskType.RequiresCode() {
		return ""
	}
	if c.tracker.HasFileOperations() {
		return ""
	}
	return fmt.Sprintf(
		"task type %s usually requires code changes, but no files were created or modified",
		c.taskType)
}

// Summary renders a completion summary with file counts.
func (c *CompletionChecker) Summary(result string) string {
	if !c.tracker.HasFileOperations() {
		return result
	}
	return fmt.Sprintf("%s (%d files created, %d modified)",
		result, c.tracker.CreatedCount(), c.tracker.ModifiedCount())
}
