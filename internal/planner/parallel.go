package planner

import "github.com/felixgeelhaar/conductor/internal/contract"

// arrangeParallel layers steps by data flow: a step depends only on the
// steps that produce what it consumes, plus its explicit dependencies.
// Independent steps end up side by side and run concurrently.
func arrangeParallel(steps []CandidateStep, estimates map[string]TaskEstimate) []*contract.Task {
	edges := inferEdges(steps)
	tasks := make([]*contract.Task, 0, len(steps))
	for _, step := range steps {
		tasks = append(tasks, buildTask(step, estimates[step.ID], edges[step.ID]))
	}
	return tasks
}

// inferEdges derives the dependency edges per step id: the step's explicit
// DependsOn entries, plus a data edge for each consumed name that an
// earlier step produces. Only earlier producers count, so data edges can
// never form a cycle on their own; the first producer in discovery order
// wins, and a data edge from an optional producer is itself optional.
func inferEdges(steps []CandidateStep) map[string][]contract.Dependency {
	firstProducer := make(map[string]int)
	for i := range steps {
		for _, name := range steps[i].Produces {
			if _, taken := firstProducer[name]; !taken {
				firstProducer[name] = i
			}
		}
	}

	edges := make(map[string][]contract.Dependency, len(steps))
	for i := range steps {
		step := &steps[i]
		deps := make([]contract.Dependency, 0, len(step.DependsOn))
		seen := make(map[string]bool)

		for _, dep := range step.DependsOn {
			if !seen[dep.TaskID] && dep.TaskID != step.ID {
				deps = append(deps, dep)
				seen[dep.TaskID] = true
			}
		}

		for _, name := range step.Consumes {
			p, ok := firstProducer[name]
			if !ok || p >= i {
				continue
			}
			producer := &steps[p]
			if seen[producer.ID] {
				continue
			}
			deps = append(deps, contract.Dependency{TaskID: producer.ID, Optional: producer.Optional})
			seen[producer.ID] = true
		}

		edges[step.ID] = deps
	}
	return edges
}
