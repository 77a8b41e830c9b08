package contract

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GraphBudget bounds the whole graph; zero values mean unbounded.
// Child task budgets must sum within these limits.
type GraphBudget struct {
	MaxTotalCost    float64       `json:"max_total_cost,omitempty" yaml:"max_total_cost,omitempty"`
	MaxTotalLatency time.Duration `json:"max_total_latency,omitempty" yaml:"max_total_latency,omitempty"`
}

// TaskGraph is an acyclic set of tasks plus dependency edges — the unit of
// planning, execution, and review. Topology is immutable after construction:
// failed tasks are marked failed or skipped, never rewired.
type TaskGraph struct {
	// ID uniquely identifies the graph
	ID string `json:"id" yaml:"id"`

	// CreatedAt is the construction timestamp
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Tasks are the graph nodes in planner discovery order
	Tasks []*Task `json:"tasks" yaml:"tasks"`

	// Budget optionally bounds the whole graph
	Budget *GraphBudget `json:"budget,omitempty" yaml:"budget,omitempty"`
}

// NewTaskGraph validates the tasks and constructs a graph.
// Validation covers per-task rules, duplicate ids, dangling dependency
// references, budget consistency, and cycle detection; a cycle fails graph
// creation, not execution.
func NewTaskGraph(tasks []*Task, budget *GraphBudget) (*TaskGraph, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("graph must have at least one task")
	}

	ids := make(map[string]bool)
	for i, task := range tasks {
		if err := task.Validate(); err != nil {
			return nil, fmt.Errorf("task at index %d is invalid: %w", i, err)
		}
		if ids[task.ID] {
			return nil, fmt.Errorf("duplicate task ID %q at index %d", task.ID, i)
		}
		ids[task.ID] = true
		if task.Status == "" {
			task.Status = TaskStatusPending
		}
	}

	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if !ids[dep.TaskID] {
				return nil, fmt.Errorf("task %s has dependency %q that does not exist in graph", task.ID, dep.TaskID)
			}
		}
	}

	if budget != nil {
		if err := validateBudget(tasks, budget); err != nil {
			return nil, err
		}
	}

	if err := checkCycles(tasks); err != nil {
		return nil, err
	}

	return &TaskGraph{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Tasks:     tasks,
		Budget:    budget,
	}, nil
}

// Task returns the task with the given id.
func (g *TaskGraph) Task(id string) (*Task, bool) {
	for _, task := range g.Tasks {
		if task.ID == id {
			return task, true
		}
	}
	return nil, false
}

// Dependents returns ids of tasks that declare a dependency on taskID.
func (g *TaskGraph) Dependents(taskID string) []string {
	var dependents []string
	for _, task := range g.Tasks {
		if task.DependsOn(taskID) {
			dependents = append(dependents, task.ID)
		}
	}
	return dependents
}

// Roots returns tasks without dependencies — the initial ready set.
func (g *TaskGraph) Roots() []*Task {
	var roots []*Task
	for _, task := range g.Tasks {
		if len(task.Dependencies) == 0 {
			roots = append(roots, task)
		}
	}
	return roots
}

func validateBudget(tasks []*Task, budget *GraphBudget) error {
	if budget.MaxTotalCost < 0 {
		return fmt.Errorf("graph budget: max total cost cannot be negative")
	}
	if budget.MaxTotalLatency < 0 {
		return fmt.Errorf("graph budget: max total latency cannot be negative")
	}

	if budget.MaxTotalCost > 0 {
		var total float64
		for _, task := range tasks {
			total += task.CostBudget
		}
		if total > budget.MaxTotalCost {
			return fmt.Errorf("graph budget: child cost budgets sum to %.4f, exceeding max total cost %.4f",
				total, budget.MaxTotalCost)
		}
	}

	if budget.MaxTotalLatency > 0 {
		var total time.Duration
		for _, task := range tasks {
			total += task.Deadline
		}
		if total > budget.MaxTotalLatency {
			return fmt.Errorf("graph budget: child deadlines sum to %s, exceeding max total latency %s",
				total, budget.MaxTotalLatency)
		}
	}

	return nil
}

// checkCycles detects cycles in the dependency graph via DFS and reports
// the offending path.
func checkCycles(tasks []*Task) error {
	graph := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		deps := make([]string, 0, len(task.Dependencies))
		for _, dep := range task.Dependencies {
			deps = append(deps, dep.TaskID)
		}
		graph[task.ID] = deps
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		visited[id] = true
		recStack[id] = true
		path = append(path, id)

		for _, dep := range graph[id] {
			if !visited[dep] {
				if err := visit(dep, path); err != nil {
					return err
				}
			} else if recStack[dep] {
				cyclePath := append(path, dep)
				return fmt.Errorf("circular dependency detected: %s", strings.Join(cyclePath, " -> "))
			}
		}

		recStack[id] = false
		return nil
	}

	for _, task := range tasks {
		if !visited[task.ID] {
			if err := visit(task.ID, nil); err != nil {
				return err
			}
		}
	}

	return nil
}
