package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Planning errors (PLAN-001 to PLAN-099)
	ErrCodeNoCandidateSteps ErrorCode = "PLAN-001"
	ErrCodeCyclicDependency ErrorCode = "PLAN-002"
	ErrCodeBudgetInfeasible ErrorCode = "PLAN-003"
	ErrCodeUnknownStrategy  ErrorCode = "PLAN-004"
	ErrCodeGraphInvalid     ErrorCode = "PLAN-005"

	// Task execution errors (TASK-001 to TASK-099)
	ErrCodeToolTransient          ErrorCode = "TASK-001"
	ErrCodeToolTimeout            ErrorCode = "TASK-002"
	ErrCodeSchemaViolation        ErrorCode = "TASK-003"
	ErrCodePermissionDenied       ErrorCode = "TASK-004"
	ErrCodeSandboxPolicyViolation ErrorCode = "TASK-005"
	ErrCodeToolNotFound           ErrorCode = "TASK-006"

	// Infrastructure errors (INFRA-001 to INFRA-099)
	ErrCodeExecutorUnavailable ErrorCode = "INFRA-001"
	ErrCodeSandboxUnavailable  ErrorCode = "INFRA-002"

	// Review errors (REVIEW-001 to REVIEW-099)
	ErrCodeReviewSchemaMalformed ErrorCode = "REVIEW-001"
	ErrCodeReviewHarnessFailed   ErrorCode = "REVIEW-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-004"
)

// ConductorError represents an enhanced error with code, suggestions, and a cause
type ConductorError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *ConductorError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ConductorError) Unwrap() error {
	return e.Cause
}

// New creates a new ConductorError
func New(code ErrorCode, message string) *ConductorError {
	return &ConductorError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ConductorError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ConductorError {
	return &ConductorError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ConductorError) WithSuggestion(suggestion string) *ConductorError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ConductorError) WithSuggestions(suggestions ...string) *ConductorError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf extracts the error code from an error chain.
// Returns an empty code if no ConductorError is present.
func CodeOf(err error) ErrorCode {
	var ce *ConductorError
	if stderrors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsRetryable reports whether the error class permits another attempt.
// Only transient tool failures and timeouts are retryable; schema,
// permission, and sandbox-policy failures fail the task immediately.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeToolTransient, ErrCodeToolTimeout:
		return true
	default:
		return false
	}
}

// IsInfrastructure reports whether the error aborts an entire run rather
// than failing a single task.
func IsInfrastructure(err error) bool {
	switch CodeOf(err) {
	case ErrCodeExecutorUnavailable, ErrCodeSandboxUnavailable:
		return true
	default:
		return false
	}
}

// Common error constructors for frequently used errors

// NewBudgetInfeasibleError creates a planning budget error
func NewBudgetInfeasibleError(details string) *ConductorError {
	return New(ErrCodeBudgetInfeasible, fmt.Sprintf("budget infeasible: %s", details)).
		WithSuggestion("Raise max_total_cost or max_total_latency_ms in the planning policy").
		WithSuggestion("Remove candidate steps or mark more steps optional")
}

// NewNoCandidateStepsError creates a planning error for an empty candidate set
func NewNoCandidateStepsError() *ConductorError {
	return New(ErrCodeNoCandidateSteps, "no candidate steps were proposed for the goal").
		WithSuggestion("Check that the goal lists at least one tool specification").
		WithSuggestion("Verify the planning oracle is reachable")
}

// NewCyclicDependencyError creates a planning error for a dependency cycle
func NewCyclicDependencyError(path string) *ConductorError {
	return New(ErrCodeCyclicDependency, fmt.Sprintf("circular dependency detected: %s", path)).
		WithSuggestion("Remove one edge of the reported cycle from the proposed steps")
}

// NewToolTimeoutError creates a retryable timeout error for a tool invocation
func NewToolTimeoutError(tool string, cause error) *ConductorError {
	return Wrap(ErrCodeToolTimeout, fmt.Sprintf("tool %s exceeded its wall-clock limit", tool), cause).
		WithSuggestion("Increase the sandbox wall-clock timeout").
		WithSuggestion("Configure a retry strategy if the tool is occasionally slow")
}

// NewSandboxPolicyViolationError creates a fatal sandbox policy error
func NewSandboxPolicyViolationError(violation string) *ConductorError {
	return New(ErrCodeSandboxPolicyViolation, fmt.Sprintf("sandbox policy violation: %s", violation)).
		WithSuggestion("Review the sandbox network and filesystem allow-lists").
		WithSuggestion("Policy violations are never retried; fix the tool or the policy")
}

// NewExecutorUnavailableError creates an infrastructure error that aborts a run
func NewExecutorUnavailableError(cause error) *ConductorError {
	return Wrap(ErrCodeExecutorUnavailable, "tool executor is unavailable", cause).
		WithSuggestion("Check that the configured executor backend is running")
}

// NewSandboxUnavailableError creates an infrastructure error that aborts a run
func NewSandboxUnavailableError(cause error) *ConductorError {
	return Wrap(ErrCodeSandboxUnavailable, "sandbox runtime is unavailable", cause).
		WithSuggestion("Install Docker Engine and make sure the daemon is running").
		WithSuggestion("Run 'docker version' to verify the installation")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *ConductorError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *ConductorError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
