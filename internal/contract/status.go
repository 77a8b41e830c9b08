package contract

import "fmt"

// TaskStatus tracks the lifecycle of a single task.
// Tasks are created by the planner and mutated only by the runner; terminal
// tasks remain in the graph as an audit record.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusReady     TaskStatus = "ready"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusRetrying  TaskStatus = "retrying"
	TaskStatusSkipped   TaskStatus = "skipped"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// GraphStatus is the aggregate outcome of executing a task graph.
type GraphStatus string

const (
	// GraphStatusSucceeded means every required task succeeded.
	GraphStatusSucceeded GraphStatus = "succeeded"
	// GraphStatusPartial means only optional (best-effort) tasks failed.
	GraphStatusPartial GraphStatus = "partial"
	// GraphStatusFailed means at least one required task failed or was skipped.
	GraphStatusFailed GraphStatus = "failed"
	// GraphStatusCancelled means execution was cancelled mid-flight.
	GraphStatusCancelled GraphStatus = "cancelled"
	// GraphStatusAborted means an infrastructure error stopped the run early.
	GraphStatusAborted GraphStatus = "aborted"
)

// CheckStatus tracks a single review check: pending → running → terminal.
type CheckStatus string

const (
	CheckStatusPending CheckStatus = "pending"
	CheckStatusRunning CheckStatus = "running"
	// CheckStatusPassed means the check ran and found no violation.
	CheckStatusPassed CheckStatus = "passed"
	// CheckStatusFailed means the check ran and found a violation.
	CheckStatusFailed CheckStatus = "failed"
	// CheckStatusError means the check itself could not run.
	CheckStatusError CheckStatus = "error"
)

var terminalTaskStatuses = map[TaskStatus]bool{
	TaskStatusSucceeded: true,
	TaskStatusFailed:    true,
	TaskStatusSkipped:   true,
	TaskStatusCancelled: true,
}

// Task status transitions: pending → ready → running → terminal, with
// retrying looping back into running. Skip and cancel can short-circuit
// from any non-terminal state.
var validTaskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusReady:     true,
		TaskStatusSkipped:   true,
		TaskStatusCancelled: true,
	},
	TaskStatusReady: {
		TaskStatusRunning:   true,
		TaskStatusSkipped:   true,
		TaskStatusCancelled: true,
	},
	TaskStatusRunning: {
		TaskStatusSucceeded: true,
		TaskStatusFailed:    true,
		TaskStatusRetrying:  true,
		TaskStatusCancelled: true,
	},
	TaskStatusRetrying: {
		TaskStatusRunning:   true,
		TaskStatusFailed:    true,
		TaskStatusCancelled: true,
	},
}

// IsTerminal reports whether the status is terminal for a task.
func (s TaskStatus) IsTerminal() bool {
	return terminalTaskStatuses[s]
}

// ValidateTaskTransition returns an error if the transition from → to is not
// allowed by the task lifecycle.
func ValidateTaskTransition(from, to TaskStatus) error {
	if from.IsTerminal() {
		return fmt.Errorf("cannot transition from terminal status %q", from)
	}
	allowed, ok := validTaskTransitions[from]
	if !ok {
		return fmt.Errorf("unknown task status %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid task transition: %q → %q", from, to)
	}
	return nil
}

// IsTerminal reports whether the check status is terminal.
func (s CheckStatus) IsTerminal() bool {
	return s == CheckStatusPassed || s == CheckStatusFailed || s == CheckStatusError
}
