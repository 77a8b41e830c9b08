package planner

import "time"

// Defaults used when neither the oracle nor execution history provides a
// better signal.
const (
	defaultStepDuration = 2 * time.Second
	defaultStepCost     = 0.01

	baseConfidence    = 0.5
	historyConfidence = 0.9
)

// Estimator derives per-step cost/latency estimates, biased by prior
// execution history: tools that recently failed or ran slow get inflated
// estimates and reduced confidence.
type Estimator struct {
	history map[string][]ExecutionFact
}

// NewEstimator indexes the planning context's history by tool name.
func NewEstimator(planContext Context) *Estimator {
	history := make(map[string][]ExecutionFact)
	for _, fact := range planContext.History {
		history[fact.Tool] = append(history[fact.Tool], fact)
	}
	return &Estimator{history: history}
}

// Estimate produces an estimate for one candidate step.
func (e *Estimator) Estimate(step CandidateStep) TaskEstimate {
	estimate := TaskEstimate{
		Duration:   step.EstimatedDuration,
		Cost:       step.EstimatedCost,
		Confidence: baseConfidence,
	}
	if estimate.Duration == 0 {
		estimate.Duration = defaultStepDuration
	}
	if estimate.Cost == 0 {
		estimate.Cost = defaultStepCost
	}

	facts := e.history[step.Tool]
	if len(facts) == 0 {
		return estimate
	}

	var totalDuration time.Duration
	var totalCost float64
	failures := 0
	for _, fact := range facts {
		totalDuration += fact.Duration
		totalCost += fact.Cost
		if fact.Failed {
			failures++
		}
	}

	// Observed averages beat hints and defaults.
	if avg := totalDuration / time.Duration(len(facts)); avg > 0 {
		estimate.Duration = avg
	}
	if avg := totalCost / float64(len(facts)); avg > 0 {
		estimate.Cost = avg
	}
	estimate.Confidence = historyConfidence

	// A flaky tool costs more in practice: pad the estimate by the
	// observed failure rate and lower confidence accordingly.
	if failures > 0 {
		failureRate := float64(failures) / float64(len(facts))
		estimate.Duration += time.Duration(float64(estimate.Duration) * failureRate)
		estimate.Confidence = historyConfidence * (1 - failureRate/2)
	}

	return estimate
}

// EstimateAll maps step id to estimate for a slice of candidates.
func (e *Estimator) EstimateAll(steps []CandidateStep) map[string]TaskEstimate {
	estimates := make(map[string]TaskEstimate, len(steps))
	for _, step := range steps {
		estimates[step.ID] = e.Estimate(step)
	}
	return estimates
}
