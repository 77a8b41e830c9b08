package cmd

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/planner"
)

// goalFile is the YAML input document for plan and run: the goal itself,
// the planning policy, and optional execution history to bias estimates.
// Durations are strings in Go syntax ("90s", "5m").
type goalFile struct {
	Intent string               `json:"intent"`
	Tools  []*contract.ToolSpec `json:"tools"`

	Policy struct {
		MaxTotalCost    float64 `json:"max_total_cost"`
		MaxTotalLatency string  `json:"max_total_latency"`
		MaxParallelism  int     `json:"max_parallelism"`
		Strategy        string  `json:"strategy"`
	} `json:"policy"`

	History []struct {
		Tool     string  `json:"tool"`
		Duration string  `json:"duration"`
		Cost     float64 `json:"cost"`
		Failed   bool    `json:"failed"`
	} `json:"history"`
}

func loadGoalFile(path string) (*goalFile, error) {
	var gf goalFile
	if err := decodeYAMLFile(path, &gf); err != nil {
		return nil, err
	}
	return &gf, nil
}

func (gf *goalFile) goal() planner.Goal {
	return planner.Goal{Intent: gf.Intent, Tools: gf.Tools}
}

func (gf *goalFile) policy() (planner.Policy, error) {
	policy := planner.Policy{
		MaxTotalCost:      gf.Policy.MaxTotalCost,
		MaxParallelism:    gf.Policy.MaxParallelism,
		PreferredStrategy: planner.Strategy(gf.Policy.Strategy),
	}
	if gf.Policy.MaxTotalLatency != "" {
		latency, err := time.ParseDuration(gf.Policy.MaxTotalLatency)
		if err != nil {
			return planner.Policy{}, fmt.Errorf("policy max_total_latency: %w", err)
		}
		policy.MaxTotalLatency = latency
	}
	return policy, nil
}

func (gf *goalFile) planContext() (planner.Context, error) {
	var planContext planner.Context
	for i, h := range gf.History {
		fact := planner.ExecutionFact{Tool: h.Tool, Cost: h.Cost, Failed: h.Failed}
		if h.Duration != "" {
			d, err := time.ParseDuration(h.Duration)
			if err != nil {
				return planner.Context{}, fmt.Errorf("history entry %d: %w", i, err)
			}
			fact.Duration = d
		}
		planContext.History = append(planContext.History, fact)
	}
	return planContext, nil
}

func (gf *goalFile) registry() (*contract.ToolRegistry, error) {
	registry := contract.NewToolRegistry()
	for _, spec := range gf.Tools {
		if err := registry.Register(spec); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// planDocument is the JSON handoff between plan and run.
type planDocument struct {
	Strategy       string              `json:"strategy"`
	MaxParallelism int                 `json:"max_parallelism"`
	Graph          *contract.TaskGraph `json:"graph"`
}
