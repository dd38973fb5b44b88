// Package trajectory records the append-only event log of an execution as
// JSON lines, optionally gzip-compressed, suitable for replay and
// evaluation.
package trajectory

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/sage/pkg/models"
)

// RecordType identifies the kind of trajectory record.
type RecordType string

const (
	RecordStepBegin         RecordType = "step_begin"
	RecordLLMRequest        RecordType = "llm_request"
	RecordLLMResponse       RecordType = "llm_response"
	RecordToolCall          RecordType = "tool_call"
	RecordToolResult        RecordType = "tool_result"
	RecordExecutionComplete RecordType = "execution_complete"
)

// Record is one typed entry in the trajectory. Payload fields are optional
// by type; ordering and types are preserved verbatim on disk.
type Record struct {
	Type         RecordType         `json:"type"`
	Time         time.Time          `json:"time"`
	StepNumber   int                `json:"step_number,omitempty"`
	Messages     []models.Message   `json:"messages,omitempty"`
	Content      string             `json:"content,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	ToolCall     *models.ToolCall   `json:"tool_call,omitempty"`
	ToolResult   *models.ToolResult `json:"tool_result,omitempty"`
	Usage        *models.TokenUsage `json:"usage,omitempty"`
	Success      *bool              `json:"success,omitempty"`
	FinalResult  string             `json:"final_result,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Recorder appends records to a per-execution file.
type Recorder struct {
	mu     sync.Mutex
	file   *os.File
	gzip   *gzip.Writer
	writer *bufio.Writer
	path   string
	closed bool
}

// NewRecorder creates a trajectory file for an execution under dir. The file
// name is derived from the execution id; compression adds a .gz suffix.
func NewRecorder(dir, executionID string, compress bool) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	name := executionID + ".jsonl"
	if compress {
		name += ".gz"
	}
	path := filepath.Join(dir, name)

	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	r := &Recorder{file: file, path: path}
	if compress {
		r.gzip = gzip.NewWriter(file)
		r.writer = bufio.NewWriter(r.gzip)
	} else {
		r.writer = bufio.NewWriter(file)
	}
	return r, nil
}

// Path returns the trajectory file path.
func (r *Recorder) Path() string {
	return r.path
}

// Append writes one record. The timestamp is stamped here when unset.
func (r *Recorder) Append(record Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("trajectory recorder closed")
	}
	if record.Time.IsZero() {
		record.Time = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if _, err := r.writer.Write(data); err != nil {
		return err
	}
	return r.writer.WriteByte('\n')
}

// Close flushes and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.writer.Flush(); err != nil {
		return err
	}
	if r.gzip != nil {
		if err := r.gzip.Close(); err != nil {
			return err
		}
	}
	return r.file.Close()
}

// Read loads every record from a trajectory file, transparently handling
// gzip by file suffix.
func Read(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	var records []Record
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("malformed trajectory record: %w", err)
		}
		records = append(records, record)
	}
	return records, scanner.Err()
}
