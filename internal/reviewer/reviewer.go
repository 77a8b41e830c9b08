// Package reviewer validates finished task results: output payloads
// against the tool's declared schema, generated tests inside the sandbox,
// and declarative acceptance criteria. Reviews are idempotent; reviewing
// the same result twice yields the same verdict.
package reviewer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/evidence"
	"github.com/felixgeelhaar/conductor/internal/log"
	"github.com/felixgeelhaar/conductor/internal/metrics"
)

// Config assembles the reviewer's collaborators. Only the harness is
// required when generated tests are expected; everything else is optional.
type Config struct {
	// Harness runs generated test code; nil errors the unit-test check
	// whenever a result carries tests
	Harness TestHarness

	// Evidence optionally captures test output
	Evidence *evidence.Store

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Reviewer reviews task results.
type Reviewer struct {
	config Config
	logger *log.Logger
}

// New creates a reviewer.
func New(config Config) *Reviewer {
	if config.Logger == nil {
		config.Logger = log.Nop()
	}
	return &Reviewer{config: config, logger: config.Logger}
}

// Request carries everything one review needs.
type Request struct {
	// GraphID identifies the run the result came from
	GraphID string

	// Spec is the tool specification the task invoked
	Spec *contract.ToolSpec

	// Result is the terminal task result under review
	Result *contract.TaskResult

	// Acceptance optionally declares acceptance criteria
	Acceptance *AcceptanceSpec
}

// Review runs the check pipeline in stable order: schema, then generated
// tests, then acceptance criteria. Checks are independent; a failure in
// one never short-circuits the rest.
func (r *Reviewer) Review(ctx context.Context, req Request) (*contract.ReviewReport, error) {
	if req.Result == nil {
		return nil, fmt.Errorf("review requires a task result")
	}

	start := time.Now().UTC()
	report := &contract.ReviewReport{
		ID:        uuid.New().String(),
		TaskID:    req.Result.TaskID,
		CreatedAt: start,
	}

	report.Checks = append(report.Checks, checkSchema(ctx, req.Spec, req.Result.Output))
	report.Checks = append(report.Checks, r.checkGeneratedTests(ctx, req))
	report.Checks = append(report.Checks, checkAcceptance(req.Acceptance, req.Result.Output))

	report.Verdict = contract.ComputeVerdict(report.Checks)
	report.CompletedAt = time.Now().UTC()

	for _, check := range report.Checks {
		r.config.Metrics.ObserveCheck(string(check.Type), string(check.Status))
	}
	r.config.Metrics.ObserveReview(report.CompletedAt.Sub(start))

	r.logger.Info("review completed",
		"task_id", req.Result.TaskID,
		"verdict", string(report.Verdict),
		"checks", len(report.Checks))

	return report, nil
}

// checkGeneratedTests executes the result's generated tests in the
// sandbox. A result without tests passes vacuously; a harness outage
// errors the check so the verdict distinguishes broken review tooling
// from failing tests.
func (r *Reviewer) checkGeneratedTests(ctx context.Context, req Request) contract.ReviewCheck {
	start := time.Now()
	check := contract.ReviewCheck{Type: contract.CheckTypeUnitTest}
	defer func() { check.Duration = time.Since(start) }()

	if req.Result.GeneratedTests == "" {
		check.Status = contract.CheckStatusPassed
		check.Detail = "result carries no generated tests"
		return check
	}

	if r.config.Harness == nil {
		check.Status = contract.CheckStatusError
		check.Detail = "no test harness configured"
		return check
	}

	run, err := r.config.Harness.RunTests(ctx, req.Result.TaskID, req.Result.GeneratedTests)
	if err != nil {
		check.Status = contract.CheckStatusError
		check.Detail = err.Error()
		return check
	}

	r.captureTestOutput(req, run)

	if !run.Passed {
		check.Status = contract.CheckStatusFailed
		check.Detail = run.Detail
		if check.Detail == "" {
			check.Detail = "generated tests failed"
		}
		return check
	}

	check.Status = contract.CheckStatusPassed
	if run.Coverage >= 0 {
		check.Detail = fmt.Sprintf("tests passed, %.1f%% coverage", run.Coverage)
	} else {
		check.Detail = "tests passed"
	}
	return check
}

func (r *Reviewer) captureTestOutput(req Request, run *TestRun) {
	if r.config.Evidence == nil || len(run.Output) == 0 || req.GraphID == "" {
		return
	}
	if _, err := r.config.Evidence.Put(req.GraphID, req.Result.TaskID, evidence.KindTestOutput, run.Output); err != nil {
		r.logger.WithError(err).Warn("test output capture failed", "task_id", req.Result.TaskID)
	}
}
