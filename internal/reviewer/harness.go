package reviewer

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/runner"
)

// TestRun is the outcome of executing a task's generated tests.
type TestRun struct {
	// Passed reports whether the whole test run succeeded
	Passed bool

	// Output is the raw test runner output, captured as evidence
	Output []byte

	// Coverage is the statement coverage figure in [0, 100], negative when
	// the harness did not report one
	Coverage float64

	// Detail summarizes failures for the report
	Detail string
}

// TestHarness executes generated test code in isolation.
type TestHarness interface {
	RunTests(ctx context.Context, taskID, testCode string) (*TestRun, error)
}

// SandboxHarness runs generated tests through the same sandboxed executor
// that ran the task, so test code gets exactly the isolation tool code got.
type SandboxHarness struct {
	executor runner.ToolExecutor
}

// harnessSpec is the synthetic tool contract for the in-sandbox test
// runner command.
var harnessSpec = &contract.ToolSpec{Name: "test-harness", Version: "1.0.0"}

// NewSandboxHarness wraps an executor as a test harness.
func NewSandboxHarness(executor runner.ToolExecutor) *SandboxHarness {
	return &SandboxHarness{executor: executor}
}

// RunTests executes the test code and interprets the harness payload:
// {"passed": bool, "coverage": number, "detail": string}.
// A test command exiting non-zero is a failing test run, not a harness
// fault; only infrastructure, timeout, and policy errors surface as errors.
func (h *SandboxHarness) RunTests(ctx context.Context, taskID, testCode string) (*TestRun, error) {
	output, err := h.executor.Execute(ctx, runner.ToolCall{
		Task: &contract.Task{
			ID:     fmt.Sprintf("%s-tests-%d", taskID, time.Now().UnixNano()),
			Tool:   harnessSpec.Name,
			Args:   map[string]any{"tests": testCode},
			Status: contract.TaskStatusReady,
		},
		Spec:    harnessSpec,
		Attempt: 1,
	})
	if errors.CodeOf(err) == errors.ErrCodeToolTransient {
		return &TestRun{
			Coverage: -1,
			Detail:   fmt.Sprintf("test command exited non-zero: %v", err),
		}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReviewHarnessFailed, "test harness execution failed", err)
	}

	run := &TestRun{Output: output.Stdout, Coverage: -1}

	if passed, ok := output.Output["passed"].(bool); ok {
		run.Passed = passed
	}
	if coverage, ok := toFloat(output.Output["coverage"]); ok {
		run.Coverage = coverage
	}
	if detail, ok := output.Output["detail"].(string); ok {
		run.Detail = detail
	}
	return run, nil
}
