package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/sage/internal/tools"
	"github.com/haasonsaas/sage/pkg/models"
)

const readMaxBytes = 256 * 1024

func resolvePath(workingDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}

type readArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file to read"`
}

// Read returns file contents.
type Read struct {
	workingDir string
}

// NewRead creates the read tool.
func NewRead(workingDir string) *Read { return &Read{workingDir: workingDir} }

func (t *Read) Name() string { return tools.NameRead }

func (t *Read) Description() string {
	return "Read a file and return its contents."
}

func (t *Read) Schema() json.RawMessage {
	return mustSchema(&readArgs{})
}

func (t *Read) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args readArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}

	path := resolvePath(t.workingDir, args.FilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ToolResult{}, err
	}

	content := string(data)
	truncated := false
	if len(content) > readMaxBytes {
		content = content[:readMaxBytes]
		truncated = true
	}
	if truncated {
		content += "\n[file truncated]"
	}

	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     content,
		Metadata:   map[string]any{"file_path": path},
	}, nil
}

func (t *Read) SupportsParallel() bool { return true }

func (t *Read) IsReadOnly() bool { return true }

func (t *Read) MaxExecutionTime() time.Duration { return 30 * time.Second }

type writeArgs struct {
	FilePath string `json:"file_path" jsonschema:"description=Path of the file to write"`
	Content  string `json:"content" jsonschema:"description=Full content to write"`
}

// Write creates or overwrites a file.
type Write struct {
	workingDir string
}

// NewWrite creates the write tool.
func NewWrite(workingDir string) *Write { return &Write{workingDir: workingDir} }

func (t *Write) Name() string { return tools.NameWrite }

func (t *Write) Description() string {
	return "Create or overwrite a file with the given content. Parent directories are created as needed."
}

func (t *Write) Schema() json.RawMessage {
	return mustSchema(&writeArgs{})
}

func (t *Write) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args writeArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}

	path := resolvePath(t.workingDir, args.FilePath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return models.ToolResult{}, err
	}
	if err := os.WriteFile(path, []byte(args.Content), 0o644); err != nil {
		return models.ToolResult{}, err
	}

	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     fmt.Sprintf("Wrote %d bytes to %s", len(args.Content), path),
		Metadata:   map[string]any{"file_path": path},
	}, nil
}

func (t *Write) SupportsParallel() bool { return true }

func (t *Write) IsReadOnly() bool { return false }

func (t *Write) MaxExecutionTime() time.Duration { return 30 * time.Second }

type editArgs struct {
	FilePath  string `json:"file_path" jsonschema:"description=Path of the file to edit"`
	OldString string `json:"old_string" jsonschema:"description=Exact text to replace; must appear exactly once"`
	NewString string `json:"new_string" jsonschema:"description=Replacement text"`
}

// Edit performs an exact-match replacement in a file.
type Edit struct {
	workingDir string
}

// NewEdit creates the edit tool.
func NewEdit(workingDir string) *Edit { return &Edit{workingDir: workingDir} }

func (t *Edit) Name() string { return tools.NameEdit }

func (t *Edit) Description() string {
	return "Replace an exact string in a file. The old string must appear exactly once."
}

func (t *Edit) Schema() json.RawMessage {
	return mustSchema(&editArgs{})
}

func (t *Edit) Execute(_ context.Context, call models.ToolCall) (models.ToolResult, error) {
	var args editArgs
	if err := decodeArgs(call.ArgumentsJSON(), &args); err != nil {
		return models.ToolResult{}, err
	}

	path := resolvePath(t.workingDir, args.FilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ToolResult{}, err
	}

	content := string(data)
	count := strings.Count(content, args.OldString)
	if count == 0 {
		return models.ToolResult{}, fmt.Errorf("old_string not found in %s", path)
	}
	if count > 1 {
		return models.ToolResult{}, fmt.Errorf("old_string appears %d times in %s; provide more context", count, path)
	}

	content = strings.Replace(content, args.OldString, args.NewString, 1)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return models.ToolResult{}, err
	}

	return models.ToolResult{
		ToolCallID: call.ID,
		ToolName:   t.Name(),
		Success:    true,
		Output:     "Edited " + path,
		Metadata:   map[string]any{"file_path": path},
	}, nil
}

func (t *Edit) SupportsParallel() bool { return true }

func (t *Edit) IsReadOnly() bool { return false }

func (t *Edit) MaxExecutionTime() time.Duration { return 30 * time.Second }
