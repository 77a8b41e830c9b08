package planner

import (
	"context"
	"fmt"
)

// StaticOracle is the offline fallback oracle: one candidate step per tool
// in goal order, arguments drawn from declared parameter defaults. It keeps
// planning usable without a model backend.
type StaticOracle struct{}

// ProposeSteps derives one step per candidate tool.
func (StaticOracle) ProposeSteps(_ context.Context, goal Goal) ([]CandidateStep, error) {
	steps := make([]CandidateStep, 0, len(goal.Tools))
	for i, tool := range goal.Tools {
		args := make(map[string]any)
		for _, p := range tool.Params {
			if p.Default != nil {
				args[p.Name] = p.Default
			}
		}

		steps = append(steps, CandidateStep{
			ID:          fmt.Sprintf("step-%03d", i+1),
			Description: fmt.Sprintf("invoke %s for goal: %s", tool.Name, goal.Intent),
			Tool:        tool.Name,
			Args:        args,
		})
	}
	return steps, nil
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, goal Goal) ([]CandidateStep, error)

// ProposeSteps implements Oracle.
func (f OracleFunc) ProposeSteps(ctx context.Context, goal Goal) ([]CandidateStep, error) {
	return f(ctx, goal)
}
