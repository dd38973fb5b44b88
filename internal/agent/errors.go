// Package agent implements the reason-act step loop that drives a task from
// creation to a terminal outcome.
package agent

import (
	"errors"
	"strings"
)

// Common sentinel errors for agent operations.
var (
	// ErrNoClient indicates no LLM client is configured.
	ErrNoClient = errors.New("no llm client configured")

	// ErrExecutionTimeout indicates the execution-level timeout elapsed.
	ErrExecutionTimeout = errors.New("execution timeout elapsed")
)

// ErrorKind is the closed taxonomy used for programmatic error handling.
type ErrorKind string

const (
	ErrAuthentication     ErrorKind = "authentication"
	ErrRateLimit          ErrorKind = "rate_limit"
	ErrInvalidRequest     ErrorKind = "invalid_request"
	ErrServiceUnavailable ErrorKind = "service_unavailable"
	ErrToolExecution      ErrorKind = "tool_execution"
	ErrConfiguration      ErrorKind = "configuration"
	ErrNetwork            ErrorKind = "network"
	ErrTimeout            ErrorKind = "timeout"
	ErrOther              ErrorKind = "other"
)

// Retryable reports whether failures of this kind are worth retrying.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrRateLimit, ErrServiceUnavailable, ErrNetwork, ErrTimeout:
		return true
	default:
		return false
	}
}

// ExecutionError is a classified failure surfaced by an execution.
type ExecutionError struct {
	// Kind buckets the failure for programmatic handling.
	Kind ErrorKind

	// Message is the human-readable description.
	Message string

	// Provider attributes the failure to an LLM provider, if known.
	Provider string

	// Suggestion tells the user what to try, if anything.
	Suggestion string

	// ToolName identifies the failing tool for ErrToolExecution.
	ToolName string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.ToolName != "" {
		b.WriteString("(" + e.ToolName + ")")
	}
	b.WriteString(": " + e.Message)
	if e.Provider != "" {
		b.WriteString(" (provider: " + e.Provider + ")")
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error is transient.
func (e *ExecutionError) Retryable() bool {
	return e.Kind.Retryable()
}

// UserMessage formats the error for display, including the suggestion when
// present.
func (e *ExecutionError) UserMessage() string {
	msg := e.Error()
	if e.Suggestion != "" {
		msg += "\nSuggestion: " + e.Suggestion
	}
	return msg
}

// NewExecutionError creates an error of the given kind.
func NewExecutionError(kind ErrorKind, message string) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message}
}

// WithProvider attributes the error to a provider.
func (e *ExecutionError) WithProvider(provider string) *ExecutionError {
	e.Provider = provider
	return e
}

// WithSuggestion attaches a remediation hint.
func (e *ExecutionError) WithSuggestion(suggestion string) *ExecutionError {
	e.Suggestion = suggestion
	return e
}

// WithCause attaches the underlying error.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	e.Cause = cause
	return e
}

// ClassifyError converts an arbitrary error into an ExecutionError, deriving
// the kind from the message content when no explicit classification exists.
func ClassifyError(err error, provider string) *ExecutionError {
	if err == nil {
		return nil
	}

	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr
	}

	msg := strings.ToLower(err.Error())
	kind := ErrOther
	suggestion := ""

	switch {
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "401"):
		kind = ErrAuthentication
		suggestion = "Check your API key in configuration"

	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "rate_limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		kind = ErrRateLimit

	case strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"):
		kind = ErrServiceUnavailable

	case strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "invalid_request"),
		strings.Contains(msg, "400"):
		kind = ErrInvalidRequest
		suggestion = "Inspect the request parameters"

	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"):
		kind = ErrTimeout

	case strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dns"):
		kind = ErrNetwork

	case strings.Contains(msg, "configuration"),
		strings.Contains(msg, "config"):
		kind = ErrConfiguration
	}

	return &ExecutionError{
		Kind:       kind,
		Message:    err.Error(),
		Provider:   provider,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// Fatal reports whether the kind should terminate the execution without
// retries.
func (e *ExecutionError) Fatal() bool {
	switch e.Kind {
	case ErrAuthentication, ErrConfiguration, ErrInvalidRequest:
		return true
	default:
		return false
	}
}

// ToolError creates an ErrToolExecution error for the named tool.
func ToolError(toolName, message string) *ExecutionError {
	return &ExecutionError{
		Kind:     ErrToolExecution,
		ToolName: toolName,
		Message:  message,
	}
}
