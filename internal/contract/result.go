package contract

import (
	"time"
)

// EvidenceRef points at a captured artifact in the evidence store.
// Results carry references only; artifact bytes never travel inline.
type EvidenceRef struct {
	GraphID string `json:"graph_id" yaml:"graph_id"`
	TaskID  string `json:"task_id" yaml:"task_id"`
	Kind    string `json:"kind" yaml:"kind"` // stdout, stderr, artifact, test-output
	Hash    string `json:"hash" yaml:"hash"`
	Path    string `json:"path" yaml:"path"`
	Size    int64  `json:"size" yaml:"size"`
}

// AttemptRecord captures a single execution attempt of a task.
type AttemptRecord struct {
	Attempt   int           `json:"attempt" yaml:"attempt"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// ExecutionMetrics aggregates timing and retry data for a task.
type ExecutionMetrics struct {
	StartedAt    time.Time       `json:"started_at" yaml:"started_at"`
	Duration     time.Duration   `json:"duration" yaml:"duration"`
	Attempts     int             `json:"attempts" yaml:"attempts"`
	RetryHistory []AttemptRecord `json:"retry_history,omitempty" yaml:"retry_history,omitempty"`
}

// TaskResult is produced for every task that reaches a terminal state.
type TaskResult struct {
	TaskID string     `json:"task_id" yaml:"task_id"`
	Tool   string     `json:"tool" yaml:"tool"`
	Status TaskStatus `json:"status" yaml:"status"`

	// Output is the tool's output payload on success
	Output map[string]any `json:"output,omitempty" yaml:"output,omitempty"`

	// Error and ErrorCode describe the terminal failure, if any
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`

	Metrics ExecutionMetrics `json:"metrics" yaml:"metrics"`

	// Evidence references artifacts captured during execution
	Evidence []EvidenceRef `json:"evidence,omitempty" yaml:"evidence,omitempty"`

	// GeneratedTests optionally carries test code produced by the tool,
	// executed later by the reviewer inside the sandbox
	GeneratedTests string `json:"generated_tests,omitempty" yaml:"generated_tests,omitempty"`
}

// GraphResult aggregates child results and the overall run outcome.
type GraphResult struct {
	GraphID     string                 `json:"graph_id" yaml:"graph_id"`
	Status      GraphStatus            `json:"status" yaml:"status"`
	TaskResults map[string]*TaskResult `json:"task_results" yaml:"task_results"`
	StartedAt   time.Time              `json:"started_at" yaml:"started_at"`
	Duration    time.Duration          `json:"duration" yaml:"duration"`

	// Detail explains aborted or cancelled outcomes
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// AggregateStatus derives the graph outcome from per-task terminal states:
// succeeded only if every required task succeeded, partial if failures are
// confined to optional tasks, failed otherwise.
func AggregateStatus(graph *TaskGraph, results map[string]*TaskResult) GraphStatus {
	requiredBad := false
	optionalBad := false

	for _, task := range graph.Tasks {
		result, ok := results[task.ID]
		if !ok {
			requiredBad = true
			continue
		}
		switch result.Status {
		case TaskStatusSucceeded:
		case TaskStatusFailed, TaskStatusSkipped, TaskStatusCancelled:
			if task.Optional {
				optionalBad = true
			} else {
				requiredBad = true
			}
		default:
			requiredBad = true
		}
	}

	switch {
	case requiredBad:
		return GraphStatusFailed
	case optionalBad:
		return GraphStatusPartial
	default:
		return GraphStatusSucceeded
	}
}
