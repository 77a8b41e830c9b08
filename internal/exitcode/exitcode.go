// Package exitcode maps error classes to process exit codes so scripts
// can branch on what went wrong without parsing stderr.
package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/conductor/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// PlanningError indicates the planner could not produce a graph
	PlanningError = 3

	// ExecutionError indicates at least one required task failed
	ExecutionError = 4

	// ReviewFailed indicates a review verdict of failed or error
	ReviewFailed = 5

	// PolicyViolation indicates a sandbox policy enforcement failure
	PolicyViolation = 6

	// InfrastructureError indicates the executor or sandbox is unavailable
	InfrastructureError = 7

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error class
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps a coded error to its exit code; uncoded errors
// fall back to the general error code.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	code := errors.CodeOf(err)
	switch {
	case code == errors.ErrCodeSandboxPolicyViolation:
		return PolicyViolation
	case errors.IsInfrastructure(err):
		return InfrastructureError
	case strings.HasPrefix(string(code), "PLAN-"):
		return PlanningError
	case strings.HasPrefix(string(code), "TASK-"):
		return ExecutionError
	case strings.HasPrefix(string(code), "REVIEW-"):
		return ReviewFailed
	default:
		return GeneralError
	}
}
