package contract

import "time"

// CheckType identifies one stage of the review pipeline.
type CheckType string

const (
	CheckTypeSchema     CheckType = "schema"
	CheckTypeUnitTest   CheckType = "unit-test"
	CheckTypeAcceptance CheckType = "acceptance-criteria"
)

// ReviewCheck is one entry of a review report. Checks are independent and
// their order in the report is stable (schema → tests → acceptance) so
// reports diff cleanly across runs.
type ReviewCheck struct {
	Type     CheckType     `json:"type" yaml:"type"`
	Status   CheckStatus   `json:"status" yaml:"status"`
	Detail   string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// ReviewVerdict is the overall outcome of a review.
type ReviewVerdict string

const (
	// VerdictPassed means every check passed.
	VerdictPassed ReviewVerdict = "passed"
	// VerdictFailed means at least one check found a substantive violation.
	VerdictFailed ReviewVerdict = "failed"
	// VerdictError means the review tooling itself broke; distinct from
	// failed so callers can retry the review without re-running the task.
	VerdictError ReviewVerdict = "error"
)

// ReviewReport is the outcome of reviewing one task result.
type ReviewReport struct {
	ID          string        `json:"id" yaml:"id"`
	TaskID      string        `json:"task_id" yaml:"task_id"`
	Checks      []ReviewCheck `json:"checks" yaml:"checks"`
	Verdict     ReviewVerdict `json:"verdict" yaml:"verdict"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
	CompletedAt time.Time     `json:"completed_at" yaml:"completed_at"`
}

// ComputeVerdict folds check statuses into the overall verdict.
// A single errored check downgrades the verdict to error.
func ComputeVerdict(checks []ReviewCheck) ReviewVerdict {
	verdict := VerdictPassed
	for _, check := range checks {
		switch check.Status {
		case CheckStatusError:
			return VerdictError
		case CheckStatusFailed:
			verdict = VerdictFailed
		}
	}
	return verdict
}
