package runner

import (
	"context"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

// ToolCall is one invocation of a tool on behalf of a task.
type ToolCall struct {
	// GraphID identifies the run this call belongs to
	GraphID string

	// Task is the task being executed
	Task *contract.Task

	// Spec is the tool specification the task invokes
	Spec *contract.ToolSpec

	// Attempt is 1-based; retries increment it
	Attempt int
}

// ToolOutput is what a successful tool invocation produced.
type ToolOutput struct {
	// Output is the tool's structured output payload
	Output map[string]any

	// Stdout and Stderr are the raw process streams, captured as evidence
	Stdout []byte
	Stderr []byte

	// Artifacts are extra named files the tool produced
	Artifacts map[string][]byte

	// GeneratedTests optionally carries test code for the reviewer
	GeneratedTests string

	// Duration is the wall-clock time of this attempt
	Duration time.Duration
}

// ToolExecutor runs tool invocations. Implementations decide where the
// tool actually runs; the scheduler only sees calls and outputs.
type ToolExecutor interface {
	// Execute runs one attempt. Errors carry a ConductorError code so the
	// scheduler can tell retryable failures from fatal ones and from
	// infrastructure outages.
	Execute(ctx context.Context, call ToolCall) (*ToolOutput, error)

	// Ping probes executor availability before a run starts. A failing
	// probe aborts the whole run instead of failing tasks one by one.
	Ping(ctx context.Context) error
}
