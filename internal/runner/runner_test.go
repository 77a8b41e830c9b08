package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/evidence"
)

// fakeExecutor scripts per-task behavior and counts attempts.
type fakeExecutor struct {
	mu       sync.Mutex
	attempts map[string]int
	handler  func(ctx context.Context, call ToolCall) (*ToolOutput, error)
	pingErr  error
}

func (f *fakeExecutor) Execute(ctx context.Context, call ToolCall) (*ToolOutput, error) {
	f.mu.Lock()
	if f.attempts == nil {
		f.attempts = make(map[string]int)
	}
	f.attempts[call.Task.ID]++
	f.mu.Unlock()

	if f.handler != nil {
		return f.handler(ctx, call)
	}
	return &ToolOutput{Output: map[string]any{"ok": true}}, nil
}

func (f *fakeExecutor) Ping(context.Context) error { return f.pingErr }

func (f *fakeExecutor) attemptCount(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[taskID]
}

func testRegistry(t *testing.T, tools ...string) *contract.ToolRegistry {
	t.Helper()
	registry := contract.NewToolRegistry()
	if len(tools) == 0 {
		tools = []string{"echo"}
	}
	for _, name := range tools {
		require.NoError(t, registry.Register(&contract.ToolSpec{Name: name, Version: "1.0.0"}))
	}
	return registry
}

func testTask(id string, deps ...contract.Dependency) *contract.Task {
	return &contract.Task{ID: id, Tool: "echo", Dependencies: deps}
}

func dep(id string) contract.Dependency { return contract.Dependency{TaskID: id} }

func newTestRunner(t *testing.T, exec ToolExecutor, mutate func(*Config)) *Runner {
	t.Helper()
	config := Config{Executor: exec, Registry: testRegistry(t)}
	if mutate != nil {
		mutate(&config)
	}
	r, err := New(config)
	require.NoError(t, err)
	return r
}

func mustGraph(t *testing.T, tasks ...*contract.Task) *contract.TaskGraph {
	t.Helper()
	graph, err := contract.NewTaskGraph(tasks, nil)
	require.NoError(t, err)
	return graph
}

func TestRun_DiamondTopologyRespectsEdges(t *testing.T) {
	var mu sync.Mutex
	var order []string

	exec := &fakeExecutor{handler: func(_ context.Context, call ToolCall) (*ToolOutput, error) {
		mu.Lock()
		order = append(order, call.Task.ID)
		mu.Unlock()
		return &ToolOutput{Output: map[string]any{"ok": true}}, nil
	}}
	r := newTestRunner(t, exec, func(c *Config) { c.MaxParallelism = 2 })

	graph := mustGraph(t,
		testTask("a"),
		testTask("b", dep("a")),
		testTask("c", dep("a")),
		testTask("d", dep("b"), dep("c")),
	)

	result, err := r.Run(context.Background(), graph)
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusSucceeded, result.Status)
	require.Len(t, order, 4)
	assert.Equal(t, "a", order[0])
	assert.Equal(t, "d", order[3])

	for _, task := range graph.Tasks {
		assert.Equal(t, contract.TaskStatusSucceeded, task.Status, task.ID)
	}
}

func TestRun_ParallelismBound(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0

	exec := &fakeExecutor{handler: func(context.Context, ToolCall) (*ToolOutput, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, func(c *Config) { c.MaxParallelism = 2 })

	graph := mustGraph(t, testTask("a"), testTask("b"), testTask("c"), testTask("d"))

	_, err := r.Run(context.Background(), graph)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak, 2)
}

func TestRun_FixedDelayRetriesThenSucceeds(t *testing.T) {
	exec := &fakeExecutor{}
	exec.handler = func(_ context.Context, call ToolCall) (*ToolOutput, error) {
		if exec.attemptCount("a") < 3 {
			return nil, errors.Wrap(errors.ErrCodeToolTransient, "flaky backend", nil)
		}
		return &ToolOutput{Output: map[string]any{"ok": true}}, nil
	}
	r := newTestRunner(t, exec, func(c *Config) {
		c.Retry = RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 2, Interval: time.Millisecond}
	})

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusSucceeded, result.Status)
	taskResult := result.TaskResults["a"]
	require.NotNil(t, taskResult)
	assert.Equal(t, 3, taskResult.Metrics.Attempts)
	assert.Len(t, taskResult.Metrics.RetryHistory, 2)
}

func TestRun_RetriesExhausted(t *testing.T) {
	exec := &fakeExecutor{handler: func(context.Context, ToolCall) (*ToolOutput, error) {
		return nil, errors.Wrap(errors.ErrCodeToolTransient, "flaky backend", nil)
	}}
	r := newTestRunner(t, exec, func(c *Config) {
		c.Retry = RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 2, Interval: time.Millisecond}
	})

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusFailed, result.Status)
	// max_retries=2 means 3 attempts total.
	assert.Equal(t, 3, exec.attemptCount("a"))
	assert.Equal(t, string(errors.ErrCodeToolTransient), result.TaskResults["a"].ErrorCode)
}

func TestRun_SchemaViolationNeverRetried(t *testing.T) {
	exec := &fakeExecutor{handler: func(context.Context, ToolCall) (*ToolOutput, error) {
		return nil, errors.New(errors.ErrCodeSchemaViolation, "output missing required field")
	}}
	r := newTestRunner(t, exec, func(c *Config) {
		c.Retry = RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 5, Interval: time.Millisecond}
	})

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusFailed, result.Status)
	assert.Equal(t, 1, exec.attemptCount("a"))
}

func TestRun_SkipCascadeOverRequiredEdges(t *testing.T) {
	exec := &fakeExecutor{handler: func(_ context.Context, call ToolCall) (*ToolOutput, error) {
		if call.Task.ID == "a" {
			return nil, errors.New(errors.ErrCodeSchemaViolation, "bad output")
		}
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, nil)

	graph := mustGraph(t,
		testTask("a"),
		testTask("b", dep("a")),
		testTask("c", dep("b")),
	)

	result, err := r.Run(context.Background(), graph)
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusFailed, result.Status)
	assert.Equal(t, contract.TaskStatusFailed, result.TaskResults["a"].Status)
	assert.Equal(t, contract.TaskStatusSkipped, result.TaskResults["b"].Status)
	assert.Equal(t, contract.TaskStatusSkipped, result.TaskResults["c"].Status)
	// Skipped tasks are never dispatched to the executor.
	assert.Equal(t, 0, exec.attemptCount("b"))
	assert.Equal(t, 0, exec.attemptCount("c"))
}

func TestRun_OptionalEdgeRunsDespiteFailure(t *testing.T) {
	exec := &fakeExecutor{handler: func(_ context.Context, call ToolCall) (*ToolOutput, error) {
		if call.Task.ID == "enrich" {
			return nil, errors.New(errors.ErrCodeSchemaViolation, "bad output")
		}
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, nil)

	enrich := testTask("enrich")
	enrich.Optional = true
	report := testTask("report", contract.Dependency{TaskID: "enrich", Optional: true})

	result, err := r.Run(context.Background(), mustGraph(t, enrich, report))
	require.NoError(t, err)

	// The dependent still ran; only the optional task failed.
	assert.Equal(t, contract.TaskStatusSucceeded, result.TaskResults["report"].Status)
	assert.Equal(t, contract.GraphStatusPartial, result.Status)
}

func TestRun_CancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := &fakeExecutor{handler: func(execCtx context.Context, call ToolCall) (*ToolOutput, error) {
		if call.Task.ID == "a" {
			cancel()
			<-execCtx.Done()
			return nil, execCtx.Err()
		}
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, nil)

	graph := mustGraph(t,
		testTask("a"),
		testTask("b", dep("a")),
		testTask("c", dep("b")),
	)

	result, err := r.Run(ctx, graph)
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusCancelled, result.Status)
	// The in-flight attempt is cancelled; its never-dispatched dependents
	// are skipped.
	assert.Equal(t, contract.TaskStatusCancelled, result.TaskResults["a"].Status)
	for _, id := range []string{"b", "c"} {
		assert.Equal(t, contract.TaskStatusSkipped, result.TaskResults[id].Status, id)
		assert.Equal(t, 0, exec.attemptCount(id))
	}
}

func TestRun_PreCancelledContextSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExecutor{}
	r := newTestRunner(t, exec, nil)

	result, err := r.Run(ctx, mustGraph(t, testTask("a"), testTask("b")))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusCancelled, result.Status)
	for _, id := range []string{"a", "b"} {
		assert.Equal(t, contract.TaskStatusSkipped, result.TaskResults[id].Status, id)
		assert.Equal(t, 0, exec.attemptCount(id))
	}
}

func TestRun_InfrastructureErrorAbortsRun(t *testing.T) {
	exec := &fakeExecutor{handler: func(_ context.Context, call ToolCall) (*ToolOutput, error) {
		if call.Task.ID == "a" {
			return nil, errors.NewSandboxUnavailableError(fmt.Errorf("docker daemon gone"))
		}
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, nil)

	graph := mustGraph(t, testTask("a"), testTask("b", dep("a")))

	result, err := r.Run(context.Background(), graph)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSandboxUnavailable, errors.CodeOf(err))
	assert.Equal(t, contract.GraphStatusAborted, result.Status)
	assert.NotEmpty(t, result.Detail)
}

func TestRun_PingFailureAbortsBeforeDispatch(t *testing.T) {
	exec := &fakeExecutor{pingErr: fmt.Errorf("connection refused")}
	r := newTestRunner(t, exec, nil)

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeExecutorUnavailable, errors.CodeOf(err))
	assert.Equal(t, contract.GraphStatusAborted, result.Status)
	assert.Equal(t, 0, exec.attemptCount("a"))
}

func TestRun_PolicyViolationFailsWithoutRetry(t *testing.T) {
	exec := &fakeExecutor{handler: func(context.Context, ToolCall) (*ToolOutput, error) {
		return nil, errors.NewSandboxPolicyViolationError("image not allow-listed")
	}}
	r := newTestRunner(t, exec, func(c *Config) {
		c.Retry = RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 5, Interval: time.Millisecond}
		c.RunLogDir = t.TempDir()
	})

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusFailed, result.Status)
	assert.Equal(t, 1, exec.attemptCount("a"))
	assert.Equal(t, string(errors.ErrCodeSandboxPolicyViolation), result.TaskResults["a"].ErrorCode)
}

func TestRun_EvidenceCaptured(t *testing.T) {
	store, err := evidence.NewStore(t.TempDir())
	require.NoError(t, err)

	exec := &fakeExecutor{handler: func(context.Context, ToolCall) (*ToolOutput, error) {
		return &ToolOutput{
			Output: map[string]any{"summary": "done"},
			Stdout: []byte("tool progress\n{\"summary\":\"done\"}\n"),
			Stderr: []byte("warning: deprecated flag"),
		}, nil
	}}
	r := newTestRunner(t, exec, func(c *Config) { c.Evidence = store })

	result, err := r.Run(context.Background(), mustGraph(t, testTask("a")))
	require.NoError(t, err)

	refs := result.TaskResults["a"].Evidence
	require.Len(t, refs, 2)

	kinds := map[string]bool{}
	for _, ref := range refs {
		kinds[ref.Kind] = true
		data, err := store.Get(ref)
		require.NoError(t, err)
		assert.Equal(t, ref.Size, int64(len(data)))
	}
	assert.True(t, kinds[evidence.KindStdout])
	assert.True(t, kinds[evidence.KindStderr])
}

func TestRun_TaskDeadlineBecomesRetryableTimeout(t *testing.T) {
	exec := &fakeExecutor{handler: func(execCtx context.Context, call ToolCall) (*ToolOutput, error) {
		if call.Attempt == 1 {
			<-execCtx.Done()
			return nil, execCtx.Err()
		}
		return &ToolOutput{}, nil
	}}
	r := newTestRunner(t, exec, func(c *Config) {
		c.Retry = RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 1, Interval: time.Millisecond}
	})

	slow := testTask("a")
	slow.Deadline = 10 * time.Millisecond

	result, err := r.Run(context.Background(), mustGraph(t, slow))
	require.NoError(t, err)

	assert.Equal(t, contract.GraphStatusSucceeded, result.Status)
	taskResult := result.TaskResults["a"]
	require.Len(t, taskResult.Metrics.RetryHistory, 1)
	assert.Equal(t, string(errors.ErrCodeToolTimeout), taskResult.Metrics.RetryHistory[0].ErrorCode)
}

func TestNew_RequiresExecutorAndRegistry(t *testing.T) {
	_, err := New(Config{Registry: contract.NewToolRegistry()})
	assert.Error(t, err)

	_, err = New(Config{Executor: &fakeExecutor{}})
	assert.Error(t, err)
}
