package contract

import (
	"fmt"
	"strings"
	"time"
)

// Dependency is an edge from a task to one of its prerequisites.
// Optional marks a best-effort edge: if the prerequisite fails, the
// dependent still runs with degraded input instead of being skipped.
type Dependency struct {
	TaskID   string `json:"task_id" yaml:"task_id"`
	Optional bool   `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Task is a single planned tool invocation inside a graph.
// Created by the planner, mutated only by the runner, never deleted.
type Task struct {
	// ID uniquely identifies the task within its graph
	ID string `json:"id" yaml:"id"`

	// Description is a human-readable summary of the step
	Description string `json:"description" yaml:"description"`

	// Tool names the ToolSpec this task invokes
	Tool string `json:"tool" yaml:"tool"`

	// Args are the concrete input arguments for the tool
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`

	// Dependencies lists prerequisite tasks in the same graph
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Status is the current lifecycle state
	Status TaskStatus `json:"status" yaml:"status"`

	// Optional marks the whole task best-effort: its failure degrades the
	// graph outcome to partial instead of failed
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// Deadline bounds the task's wall-clock execution, zero means unbounded
	Deadline time.Duration `json:"deadline,omitempty" yaml:"deadline,omitempty"`

	// CostBudget bounds the task's cost, zero means unbounded
	CostBudget float64 `json:"cost_budget,omitempty" yaml:"cost_budget,omitempty"`

	// Metadata carries free-form annotations
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Validate checks the task against domain rules.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if strings.TrimSpace(t.Tool) == "" {
		return fmt.Errorf("task %s: tool cannot be empty", t.ID)
	}

	seen := make(map[string]bool)
	for i, dep := range t.Dependencies {
		if strings.TrimSpace(dep.TaskID) == "" {
			return fmt.Errorf("task %s: dependency at index %d has empty task ID", t.ID, i)
		}
		if dep.TaskID == t.ID {
			return fmt.Errorf("task %s: cannot depend on itself", t.ID)
		}
		if seen[dep.TaskID] {
			return fmt.Errorf("task %s: duplicate dependency %q", t.ID, dep.TaskID)
		}
		seen[dep.TaskID] = true
	}

	if t.Deadline < 0 {
		return fmt.Errorf("task %s: deadline cannot be negative", t.ID)
	}
	if t.CostBudget < 0 {
		return fmt.Errorf("task %s: cost budget cannot be negative", t.ID)
	}

	return nil
}

// DependsOn reports whether the task declares a dependency on the given id.
func (t *Task) DependsOn(taskID string) bool {
	for _, dep := range t.Dependencies {
		if dep.TaskID == taskID {
			return true
		}
	}
	return false
}

// RequiredDependencies returns the non-optional dependency edges.
func (t *Task) RequiredDependencies() []Dependency {
	var required []Dependency
	for _, dep := range t.Dependencies {
		if !dep.Optional {
			required = append(required, dep)
		}
	}
	return required
}
