package reviewer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/runner"
)

// scriptedExecutor returns a fixed outcome for every invocation.
type scriptedExecutor struct {
	output *runner.ToolOutput
	err    error
}

func (s *scriptedExecutor) Execute(context.Context, runner.ToolCall) (*runner.ToolOutput, error) {
	return s.output, s.err
}

func (s *scriptedExecutor) Ping(context.Context) error { return nil }

func TestSandboxHarness_ParsesPayload(t *testing.T) {
	h := NewSandboxHarness(&scriptedExecutor{output: &runner.ToolOutput{
		Output: map[string]any{"passed": true, "coverage": 73.2, "detail": "12 tests"},
		Stdout: []byte("ok\n"),
	}})

	run, err := h.RunTests(context.Background(), "t1", "func TestX(t *testing.T) {}")
	require.NoError(t, err)

	assert.True(t, run.Passed)
	assert.Equal(t, 73.2, run.Coverage)
	assert.Equal(t, "12 tests", run.Detail)
	assert.Equal(t, []byte("ok\n"), run.Output)
}

func TestSandboxHarness_NonZeroExitIsFailedRun(t *testing.T) {
	h := NewSandboxHarness(&scriptedExecutor{
		err: errors.Wrap(errors.ErrCodeToolTransient, "tool command failed", fmt.Errorf("exit status 1")),
	})

	run, err := h.RunTests(context.Background(), "t1", "func TestX(t *testing.T) {}")
	require.NoError(t, err)

	assert.False(t, run.Passed)
	assert.Contains(t, run.Detail, "exited non-zero")
	assert.Equal(t, float64(-1), run.Coverage)
}

func TestSandboxHarness_InfrastructureFaultIsError(t *testing.T) {
	h := NewSandboxHarness(&scriptedExecutor{
		err: errors.NewSandboxUnavailableError(fmt.Errorf("docker daemon gone")),
	})

	_, err := h.RunTests(context.Background(), "t1", "func TestX(t *testing.T) {}")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeReviewHarnessFailed, errors.CodeOf(err))
}

func TestReview_CrashingTestsFailVerdict(t *testing.T) {
	harness := NewSandboxHarness(&scriptedExecutor{
		err: errors.Wrap(errors.ErrCodeToolTransient, "tool command failed", fmt.Errorf("exit status 2")),
	})
	r := New(Config{Harness: harness})

	report, err := r.Review(context.Background(), Request{
		Spec: summarySpec(),
		Result: &contract.TaskResult{
			TaskID:         "t1",
			Output:         map[string]any{"summary": "fine"},
			GeneratedTests: "func TestX(t *testing.T) { t.Fatal() }",
		},
	})
	require.NoError(t, err)

	// Tests that crash the runner are failing tests, not broken tooling.
	assert.Equal(t, contract.VerdictFailed, report.Verdict)
	assert.Equal(t, contract.CheckStatusFailed, report.Checks[1].Status)
	assert.Contains(t, report.Checks[1].Detail, "exited non-zero")
}
