package planner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
)

// selectStrategy picks the arrangement strategy. A preferred strategy from
// the policy always wins; otherwise budgets force the optimized strategy,
// multiple independent steps pick parallel, and everything else falls back
// to sequential.
func selectStrategy(policy Policy, steps []CandidateStep) (Strategy, error) {
	if policy.PreferredStrategy != "" {
		switch policy.PreferredStrategy {
		case StrategySequential, StrategyParallel, StrategyOptimized:
			return policy.PreferredStrategy, nil
		default:
			return "", errors.New(errors.ErrCodeUnknownStrategy,
				fmt.Sprintf("unknown planning strategy %q", policy.PreferredStrategy)).
				WithSuggestion("Use one of: sequential, parallel, optimized")
		}
	}

	if policy.MaxTotalCost > 0 || policy.MaxTotalLatency > 0 {
		return StrategyOptimized, nil
	}

	if countRoots(steps) > 1 {
		return StrategyParallel, nil
	}
	return StrategySequential, nil
}

// countRoots counts steps with no inferred or explicit dependency.
func countRoots(steps []CandidateStep) int {
	edges := inferEdges(steps)
	roots := 0
	for _, step := range steps {
		if len(edges[step.ID]) == 0 {
			roots++
		}
	}
	return roots
}

// arrangeSequential chains steps in discovery order: each step depends on
// its predecessor plus whatever the oracle declared explicitly. Explicit
// edges are preserved verbatim, so a cyclic proposal stays cyclic and fails
// graph validation instead of being silently reordered.
func arrangeSequential(steps []CandidateStep, estimates map[string]TaskEstimate) []*contract.Task {
	tasks := make([]*contract.Task, 0, len(steps))
	for i, step := range steps {
		deps := make([]contract.Dependency, 0, len(step.DependsOn)+1)
		seen := make(map[string]bool, len(step.DependsOn)+1)
		for _, dep := range step.DependsOn {
			if !seen[dep.TaskID] {
				seen[dep.TaskID] = true
				deps = append(deps, dep)
			}
		}
		if i > 0 && !seen[steps[i-1].ID] {
			deps = append(deps, contract.Dependency{TaskID: steps[i-1].ID, Optional: steps[i-1].Optional})
		}
		tasks = append(tasks, buildTask(step, estimates[step.ID], deps))
	}
	return tasks
}

// buildTask converts a candidate step plus its estimate into a graph task.
// The estimate is recorded in metadata so the runner and reviewer can see
// what the planner expected.
func buildTask(step CandidateStep, estimate TaskEstimate, deps []contract.Dependency) *contract.Task {
	metadata := map[string]string{
		"estimated_duration_ms": strconv.FormatInt(estimate.Duration.Milliseconds(), 10),
		"estimated_cost":        strconv.FormatFloat(estimate.Cost, 'f', -1, 64),
	}

	return &contract.Task{
		ID:           step.ID,
		Description:  step.Description,
		Tool:         step.Tool,
		Args:         step.Args,
		Dependencies: deps,
		Status:       contract.TaskStatusPending,
		Optional:     step.Optional,
		CostBudget:   estimate.Cost,
		Metadata:     metadata,
	}
}

// criticalPath returns the longest estimated path through the steps, the
// lower bound on wall-clock latency under unbounded parallelism.
func criticalPath(steps []CandidateStep, edges map[string][]contract.Dependency, estimates map[string]TaskEstimate) time.Duration {
	finish := make(map[string]time.Duration, len(steps))

	var visit func(id string) time.Duration
	visit = func(id string) time.Duration {
		if d, ok := finish[id]; ok {
			return d
		}
		var longest time.Duration
		for _, dep := range edges[id] {
			if d := visit(dep.TaskID); d > longest {
				longest = d
			}
		}
		total := longest + estimates[id].Duration
		finish[id] = total
		return total
	}

	var path time.Duration
	for _, step := range steps {
		if d := visit(step.ID); d > path {
			path = d
		}
	}
	return path
}

// totalCost sums the estimated cost across steps.
func totalCost(steps []CandidateStep, estimates map[string]TaskEstimate) float64 {
	var total float64
	for _, step := range steps {
		total += estimates[step.ID].Cost
	}
	return total
}
