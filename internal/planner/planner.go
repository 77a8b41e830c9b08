// Package planner turns a goal plus a set of tool specifications into an
// executable task graph. The planner consults an oracle for candidate
// steps, estimates each step from execution history, arranges the steps
// under one of three strategies, and validates the result into a graph.
package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/log"
)

// Planner builds task graphs from goals.
type Planner struct {
	oracle Oracle
	logger *log.Logger
}

// New creates a planner. A nil oracle falls back to the static
// one-step-per-tool oracle.
func New(oracle Oracle, logger *log.Logger) *Planner {
	if oracle == nil {
		oracle = StaticOracle{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Planner{oracle: oracle, logger: logger}
}

// Plan is the planner's output: the validated graph plus the decisions
// made while building it.
type Plan struct {
	// Graph is the validated, acyclic task graph
	Graph *contract.TaskGraph

	// Strategy is the arrangement strategy actually used
	Strategy Strategy

	// Estimates are the per-task estimates keyed by task id
	Estimates map[string]TaskEstimate

	// MaxParallelism is the policy's concurrency bound for the runner,
	// zero for the runner default; sequential plans pin it to one
	MaxParallelism int
}

// Plan builds a task graph for the goal under the given policy.
func (p *Planner) Plan(ctx context.Context, goal Goal, policy Policy, planContext Context) (*Plan, error) {
	toolIndex := make(map[string]*contract.ToolSpec, len(goal.Tools))
	for _, spec := range goal.Tools {
		if err := spec.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeGraphInvalid, "goal carries an invalid tool specification", err)
		}
		toolIndex[spec.Name] = spec
	}

	steps, err := p.oracle.ProposeSteps(ctx, goal)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNoCandidateSteps, "planning oracle failed to propose steps", err).
			WithSuggestion("Verify the planning oracle backend is reachable")
	}
	if len(steps) == 0 {
		return nil, errors.NewNoCandidateStepsError()
	}

	if err := normalizeSteps(steps, toolIndex); err != nil {
		return nil, err
	}

	estimates := NewEstimator(planContext).EstimateAll(steps)

	strategy, err := selectStrategy(policy, steps)
	if err != nil {
		return nil, err
	}

	var tasks []*contract.Task
	switch strategy {
	case StrategySequential:
		tasks = arrangeSequential(steps, estimates)
	case StrategyParallel:
		tasks = arrangeParallel(steps, estimates)
	case StrategyOptimized:
		tasks, err = arrangeOptimized(policy, steps, estimates)
		if err != nil {
			return nil, err
		}
	}

	if err := checkBudgets(policy, strategy, tasks, estimates); err != nil {
		return nil, err
	}

	graph, err := contract.NewTaskGraph(tasks, graphBudget(policy))
	if err != nil {
		if strings.Contains(err.Error(), "circular dependency") {
			return nil, errors.Wrap(errors.ErrCodeCyclicDependency, "proposed steps form a dependency cycle", err).
				WithSuggestion("Remove one edge of the reported cycle from the proposed steps")
		}
		return nil, errors.Wrap(errors.ErrCodeGraphInvalid, "planned tasks failed graph validation", err)
	}

	maxParallelism := policy.MaxParallelism
	if strategy == StrategySequential {
		maxParallelism = 1
	}

	p.logger.Info("plan built",
		"graph_id", graph.ID,
		"strategy", string(strategy),
		"task_count", len(graph.Tasks),
		"max_parallelism", maxParallelism)

	return &Plan{
		Graph:          graph,
		Strategy:       strategy,
		Estimates:      estimates,
		MaxParallelism: maxParallelism,
	}, nil
}

// normalizeSteps assigns missing ids, rejects duplicates and unknown tools,
// and fills Consumes/Produces from the tool specification when the oracle
// left them empty.
func normalizeSteps(steps []CandidateStep, toolIndex map[string]*contract.ToolSpec) error {
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		step := &steps[i]
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%03d", i+1)
		}
		if seen[step.ID] {
			return errors.New(errors.ErrCodeGraphInvalid,
				fmt.Sprintf("oracle proposed duplicate step id %q", step.ID))
		}
		seen[step.ID] = true

		spec, ok := toolIndex[step.Tool]
		if !ok {
			return errors.New(errors.ErrCodeGraphInvalid,
				fmt.Sprintf("step %s references tool %q which the goal does not provide", step.ID, step.Tool)).
				WithSuggestion("Add the tool specification to the goal or fix the step's tool name")
		}

		if len(step.Consumes) == 0 {
			for _, param := range spec.Params {
				if param.Required {
					step.Consumes = append(step.Consumes, param.Name)
				}
			}
		}
		if len(step.Produces) == 0 {
			step.Produces = spec.OutputProperties()
		}
	}
	return nil
}

// checkBudgets verifies the final arrangement against the policy budgets.
// The optimized strategy shrinks until it fits, so this is a no-op there;
// for forced sequential or parallel plans an over-budget arrangement is a
// planning failure, not something deferred to execution.
func checkBudgets(policy Policy, strategy Strategy, tasks []*contract.Task, estimates map[string]TaskEstimate) error {
	if strategy == StrategyOptimized {
		return nil
	}
	if policy.MaxTotalCost == 0 && policy.MaxTotalLatency == 0 {
		return nil
	}

	var cost float64
	edges := make(map[string][]contract.Dependency, len(tasks))
	steps := make([]CandidateStep, 0, len(tasks))
	for _, task := range tasks {
		cost += estimates[task.ID].Cost
		edges[task.ID] = task.Dependencies
		steps = append(steps, CandidateStep{ID: task.ID})
	}
	latency := criticalPath(steps, edges, estimates)

	overCost := policy.MaxTotalCost > 0 && cost > policy.MaxTotalCost
	overLatency := policy.MaxTotalLatency > 0 && latency > policy.MaxTotalLatency
	if overCost || overLatency {
		return errors.NewBudgetInfeasibleError(budgetDetail(policy, cost, latency))
	}
	return nil
}

func graphBudget(policy Policy) *contract.GraphBudget {
	if policy.MaxTotalCost == 0 && policy.MaxTotalLatency == 0 {
		return nil
	}
	return &contract.GraphBudget{
		MaxTotalCost:    policy.MaxTotalCost,
		MaxTotalLatency: policy.MaxTotalLatency,
	}
}
