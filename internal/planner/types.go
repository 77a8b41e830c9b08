package planner

import (
	"context"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

// Strategy selects how candidate steps are arranged into a graph.
type Strategy string

const (
	// StrategySequential chains steps in discovery order; always valid,
	// used as the safe fallback.
	StrategySequential Strategy = "sequential"

	// StrategyParallel layers independent steps to maximize concurrency.
	StrategyParallel Strategy = "parallel"

	// StrategyOptimized reorders, substitutes, and drops steps to fit the
	// policy budgets, failing fast when no arrangement fits.
	StrategyOptimized Strategy = "optimized"
)

// Goal is the planning request: an intent plus the tool specifications
// available to the plan.
type Goal struct {
	// Intent is the natural-language or structured description of what the
	// plan should achieve
	Intent string

	// Tools are the candidate tool specifications available to the plan
	Tools []*contract.ToolSpec
}

// Policy bounds the plan the planner may produce.
type Policy struct {
	// MaxTotalCost bounds the summed estimated cost, zero means unbounded
	MaxTotalCost float64

	// MaxTotalLatency bounds the estimated critical path, zero means unbounded
	MaxTotalLatency time.Duration

	// MaxParallelism is recorded on the graph for the runner, zero means
	// runner default
	MaxParallelism int

	// PreferredStrategy forces a strategy; empty selects automatically
	PreferredStrategy Strategy
}

// ExecutionFact is one piece of prior execution history used to bias
// estimates.
type ExecutionFact struct {
	Tool     string
	Duration time.Duration
	Cost     float64
	Failed   bool
}

// Context carries environment facts a strategy may use to bias step
// selection and estimation.
type Context struct {
	History []ExecutionFact
}

// CandidateStep is a step proposed by the planning oracle.
type CandidateStep struct {
	// ID is optional; the planner assigns one when empty
	ID string

	// Description is a human-readable summary
	Description string

	// Tool names the tool specification the step invokes
	Tool string

	// Args are concrete input arguments
	Args map[string]any

	// DependsOn are explicit dependencies on other candidate step ids
	DependsOn []contract.Dependency

	// Optional marks the step best-effort
	Optional bool

	// Consumes are input names the step reads; defaults to the tool's
	// required parameter names
	Consumes []string

	// Produces are output names the step provides; defaults to the tool's
	// declared output properties
	Produces []string

	// EstimatedDuration and EstimatedCost are oracle-provided hints;
	// zero values fall back to history-based estimation
	EstimatedDuration time.Duration
	EstimatedCost     float64
}

// TaskEstimate is the planner's cost/latency estimate for one step.
type TaskEstimate struct {
	// Duration is the expected wall-clock time
	Duration time.Duration

	// Cost is the expected cost in budget units
	Cost float64

	// Confidence is in (0, 1]; history-backed estimates score higher
	Confidence float64
}

// Oracle proposes candidate steps for a goal. The oracle is a consumed
// capability: the planner never implements model calls itself.
type Oracle interface {
	ProposeSteps(ctx context.Context, goal Goal) ([]CandidateStep, error)
}
