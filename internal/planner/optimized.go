package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
)

// arrangeOptimized starts from the parallel arrangement and shrinks the
// step set until the policy budgets fit: equivalent steps collapse to the
// cheapest one, then optional steps are dropped most-expensive first. When
// the remaining required set still exceeds a budget, planning fails with a
// budget infeasibility error rather than producing a graph that cannot be
// executed within policy.
func arrangeOptimized(policy Policy, steps []CandidateStep, estimates map[string]TaskEstimate) ([]*contract.Task, error) {
	working := dedupeEquivalentSteps(steps, estimates)

	for {
		edges := inferEdges(working)
		cost := totalCost(working, estimates)
		latency := criticalPath(working, edges, estimates)

		overCost := policy.MaxTotalCost > 0 && cost > policy.MaxTotalCost
		overLatency := policy.MaxTotalLatency > 0 && latency > policy.MaxTotalLatency
		if !overCost && !overLatency {
			tasks := make([]*contract.Task, 0, len(working))
			for _, step := range working {
				tasks = append(tasks, buildTask(step, estimates[step.ID], edges[step.ID]))
			}
			return tasks, nil
		}

		dropped, ok := dropMostExpensiveOptional(working, edges, estimates)
		if !ok {
			return nil, errors.NewBudgetInfeasibleError(budgetDetail(policy, cost, latency))
		}
		working = dropped
	}
}

// dedupeEquivalentSteps collapses steps that produce the same outputs with
// the same tool, keeping the cheapest. Explicit dependencies on a dropped
// step are rewired to the survivor.
func dedupeEquivalentSteps(steps []CandidateStep, estimates map[string]TaskEstimate) []CandidateStep {
	type group struct {
		index int
		cost  float64
	}

	cheapest := make(map[string]group)
	replaced := make(map[string]string)
	keep := make(map[int]bool, len(steps))

	for i, step := range steps {
		if len(step.Produces) == 0 {
			keep[i] = true
			continue
		}
		key := step.Tool + "|" + signature(step.Produces)
		cost := estimates[step.ID].Cost

		current, ok := cheapest[key]
		if !ok {
			cheapest[key] = group{index: i, cost: cost}
			keep[i] = true
			continue
		}
		if cost < current.cost {
			keep[current.index] = false
			replaced[steps[current.index].ID] = step.ID
			cheapest[key] = group{index: i, cost: cost}
			keep[i] = true
		} else {
			replaced[step.ID] = steps[current.index].ID
		}
	}

	result := make([]CandidateStep, 0, len(steps))
	for i, step := range steps {
		if !keep[i] {
			continue
		}
		for j, dep := range step.DependsOn {
			if survivor, ok := replaced[dep.TaskID]; ok {
				step.DependsOn[j].TaskID = survivor
			}
		}
		result = append(result, step)
	}
	return result
}

// dropMostExpensiveOptional removes the costliest optional step that no
// kept step requires through a non-optional edge. Returns false when no
// step can be dropped.
func dropMostExpensiveOptional(steps []CandidateStep, edges map[string][]contract.Dependency, estimates map[string]TaskEstimate) ([]CandidateStep, bool) {
	requiredBy := make(map[string]bool)
	for _, step := range steps {
		for _, dep := range edges[step.ID] {
			if !dep.Optional {
				requiredBy[dep.TaskID] = true
			}
		}
	}

	victim := -1
	var victimCost float64
	for i, step := range steps {
		if !step.Optional || requiredBy[step.ID] {
			continue
		}
		if cost := estimates[step.ID].Cost; victim < 0 || cost > victimCost {
			victim = i
			victimCost = cost
		}
	}
	if victim < 0 {
		return nil, false
	}

	droppedID := steps[victim].ID
	result := make([]CandidateStep, 0, len(steps)-1)
	for i, step := range steps {
		if i == victim {
			continue
		}
		kept := step.DependsOn[:0:0]
		for _, dep := range step.DependsOn {
			if dep.TaskID != droppedID {
				kept = append(kept, dep)
			}
		}
		step.DependsOn = kept
		result = append(result, step)
	}
	return result, true
}

func signature(names []string) string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	var sig string
	for i, name := range sorted {
		if i > 0 {
			sig += ","
		}
		sig += name
	}
	return sig
}

func budgetDetail(policy Policy, cost float64, latency time.Duration) string {
	detail := ""
	if policy.MaxTotalCost > 0 && cost > policy.MaxTotalCost {
		detail = fmt.Sprintf("required steps cost %.4f, policy allows %.4f", cost, policy.MaxTotalCost)
	}
	if policy.MaxTotalLatency > 0 && latency > policy.MaxTotalLatency {
		if detail != "" {
			detail += "; "
		}
		detail += fmt.Sprintf("estimated critical path %s, policy allows %s", latency, policy.MaxTotalLatency)
	}
	return detail
}
