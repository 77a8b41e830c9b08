// Package runner executes task graphs: a Kahn-style scheduler dispatches
// ready tasks to a bounded worker pool, retries transient failures,
// cascades skips across required edges, and captures evidence for every
// attempt.
package runner

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/evidence"
	"github.com/felixgeelhaar/conductor/internal/log"
	"github.com/felixgeelhaar/conductor/internal/metrics"
	"github.com/felixgeelhaar/conductor/internal/runlog"
)

const defaultMaxParallelism = 4

// Config assembles the runner's collaborators.
type Config struct {
	// MaxParallelism bounds concurrent task execution (default: 4)
	MaxParallelism int

	// Retry controls re-execution of retryable failures
	Retry RetryConfig

	// Executor runs tool invocations; required
	Executor ToolExecutor

	// Registry resolves tool names to specifications; required
	Registry *contract.ToolRegistry

	// Evidence optionally captures stdout/stderr/artifacts per attempt
	Evidence *evidence.Store

	// RunLogDir enables the persisted NDJSON execution log when non-empty
	RunLogDir string

	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Runner executes task graphs.
type Runner struct {
	config Config
	logger *log.Logger
}

// New validates the configuration and creates a runner.
func New(config Config) (*Runner, error) {
	if config.Executor == nil {
		return nil, fmt.Errorf("runner requires a tool executor")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("runner requires a tool registry")
	}
	if err := config.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}
	if config.MaxParallelism <= 0 {
		config.MaxParallelism = defaultMaxParallelism
	}
	if config.Logger == nil {
		config.Logger = log.Nop()
	}
	return &Runner{config: config, logger: config.Logger}, nil
}

// runState is the scheduler's shared mutable state, guarded by one mutex.
type runState struct {
	mu sync.Mutex

	graph       *contract.TaskGraph
	results     map[string]*contract.TaskResult
	pendingDeps map[string]int
	dependents  map[string][]string

	abortErr error
}

type skipRecord struct {
	task   *contract.Task
	reason string
}

// Run executes the graph to completion, cancellation, or abort.
// The topology is never mutated: failed or skipped tasks stay in the graph
// with their terminal status as an audit record.
func (r *Runner) Run(ctx context.Context, graph *contract.TaskGraph) (*contract.GraphResult, error) {
	start := time.Now()

	rl, err := r.newRunLog(graph.ID)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	defer rl.Close()

	if err := r.config.Executor.Ping(ctx); err != nil {
		abortErr := err
		if !errors.IsInfrastructure(err) {
			abortErr = errors.NewExecutorUnavailableError(err)
		}
		r.logger.WithError(abortErr).Error("run aborted before any task was dispatched", "graph_id", graph.ID)
		result := &contract.GraphResult{
			GraphID:     graph.ID,
			Status:      contract.GraphStatusAborted,
			TaskResults: map[string]*contract.TaskResult{},
			StartedAt:   start,
			Duration:    time.Since(start),
			Detail:      abortErr.Error(),
		}
		r.config.Metrics.ObserveGraph(string(result.Status), result.Duration)
		return result, abortErr
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := newRunState(graph)
	rl.GraphStart(len(graph.Tasks), r.config.MaxParallelism)
	r.logger.Info("graph execution started",
		"graph_id", graph.ID,
		"task_count", len(graph.Tasks),
		"max_parallelism", r.config.MaxParallelism)

	sem := semaphore.NewWeighted(int64(r.config.MaxParallelism))
	var wg sync.WaitGroup

	var dispatch func(task *contract.Task)
	var onTerminal func(task *contract.Task)

	dispatch = func(task *contract.Task) {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(runCtx, 1); err != nil {
				result := r.skipUndispatched(task, rl)
				st.record(result)
				onTerminal(task)
				return
			}
			defer sem.Release(1)

			result := r.executeTask(runCtx, st, graph.ID, task, rl, cancel)
			st.record(result)
			onTerminal(task)
		}()
	}

	onTerminal = func(task *contract.Task) {
		ready, skipped := st.settle(task.ID)
		for _, rec := range skipped {
			rl.TaskSkip(rec.task.ID, rec.reason)
			r.config.Metrics.ObserveTask(string(contract.TaskStatusSkipped), rec.task.Tool, 0)
			onTerminal(rec.task)
		}
		for _, next := range ready {
			dispatch(next)
		}
	}

	for _, task := range graph.Roots() {
		if err := transition(task, contract.TaskStatusReady); err == nil {
			dispatch(task)
		}
	}
	wg.Wait()

	// Anything still non-terminal never got scheduled before cancellation
	// or abort hit. Never-dispatched tasks are skipped; cancelled is
	// reserved for attempts that were actually in flight.
	for _, task := range graph.Tasks {
		if task.Status.IsTerminal() {
			continue
		}
		result := r.skipUndispatched(task, rl)
		st.record(result)
	}

	result := &contract.GraphResult{
		GraphID:     graph.ID,
		TaskResults: st.results,
		StartedAt:   start,
		Duration:    time.Since(start),
	}

	switch {
	case st.abortErr != nil:
		result.Status = contract.GraphStatusAborted
		result.Detail = st.abortErr.Error()
	case ctx.Err() != nil:
		result.Status = contract.GraphStatusCancelled
		result.Detail = ctx.Err().Error()
	default:
		result.Status = contract.AggregateStatus(graph, st.results)
	}

	rl.GraphComplete(string(result.Status), result.Duration)
	r.config.Metrics.ObserveGraph(string(result.Status), result.Duration)
	r.logger.Info("graph execution finished",
		"graph_id", graph.ID,
		"status", string(result.Status),
		"duration_ms", result.Duration.Milliseconds())

	if st.abortErr != nil {
		return result, st.abortErr
	}
	return result, nil
}

func newRunState(graph *contract.TaskGraph) *runState {
	st := &runState{
		graph:       graph,
		results:     make(map[string]*contract.TaskResult, len(graph.Tasks)),
		pendingDeps: make(map[string]int, len(graph.Tasks)),
		dependents:  make(map[string][]string),
	}
	for _, task := range graph.Tasks {
		st.pendingDeps[task.ID] = len(task.Dependencies)
		for _, dep := range task.Dependencies {
			st.dependents[dep.TaskID] = append(st.dependents[dep.TaskID], task.ID)
		}
	}
	return st
}

func (st *runState) record(result *contract.TaskResult) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.results[result.TaskID] = result
}

// settle processes one terminal task: required edges from a non-succeeded
// task skip their dependents, everything else counts down toward ready.
func (st *runState) settle(taskID string) (ready []*contract.Task, skipped []skipRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()

	terminal, ok := st.results[taskID]
	if !ok {
		return nil, nil
	}

	for _, depID := range st.dependents[taskID] {
		dependent, found := st.graph.Task(depID)
		if !found || dependent.Status.IsTerminal() {
			continue
		}

		required := false
		for _, edge := range dependent.Dependencies {
			if edge.TaskID == taskID && !edge.Optional {
				required = true
			}
		}

		if required && terminal.Status != contract.TaskStatusSucceeded {
			if err := transition(dependent, contract.TaskStatusSkipped); err != nil {
				continue
			}
			st.results[dependent.ID] = &contract.TaskResult{
				TaskID: dependent.ID,
				Tool:   dependent.Tool,
				Status: contract.TaskStatusSkipped,
				Error:  fmt.Sprintf("dependency %s finished as %s", taskID, terminal.Status),
			}
			skipped = append(skipped, skipRecord{
				task:   dependent,
				reason: fmt.Sprintf("dependency %s finished as %s", taskID, terminal.Status),
			})
			continue
		}

		st.pendingDeps[dependent.ID]--
		if st.pendingDeps[dependent.ID] == 0 && dependent.Status == contract.TaskStatusPending {
			if err := transition(dependent, contract.TaskStatusReady); err == nil {
				ready = append(ready, dependent)
			}
		}
	}
	return ready, skipped
}

func (st *runState) abort(err error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.abortErr == nil {
		st.abortErr = err
	}
}

// executeTask runs one task through its retry loop and returns the
// terminal result.
func (r *Runner) executeTask(ctx context.Context, st *runState, graphID string, task *contract.Task, rl *runlog.Logger, abort context.CancelFunc) *contract.TaskResult {
	result := &contract.TaskResult{
		TaskID:  task.ID,
		Tool:    task.Tool,
		Metrics: contract.ExecutionMetrics{StartedAt: time.Now().UTC()},
	}
	defer func() {
		result.Metrics.Duration = time.Since(result.Metrics.StartedAt)
		result.Status = task.Status
		r.config.Metrics.ObserveTask(string(task.Status), task.Tool, result.Metrics.Duration)
	}()

	if err := transition(task, contract.TaskStatusRunning); err != nil {
		return r.failTask(task, result, rl, errors.New(errors.ErrCodeGraphInvalid, err.Error()))
	}

	spec, ok := r.config.Registry.Get(task.Tool)
	if !ok {
		return r.failTask(task, result, rl, errors.New(errors.ErrCodeToolNotFound,
			fmt.Sprintf("tool %q is not registered", task.Tool)).
			WithSuggestion("Register the tool specification before running the graph"))
	}

	attempt := 1
	for {
		rl.TaskDispatch(task.ID, task.Tool, attempt)

		attemptCtx := ctx
		var cancelAttempt context.CancelFunc
		if task.Deadline > 0 {
			attemptCtx, cancelAttempt = context.WithTimeout(ctx, task.Deadline)
		}

		attemptStart := time.Now()
		output, err := r.config.Executor.Execute(attemptCtx, ToolCall{
			GraphID: graphID,
			Task:    task,
			Spec:    spec,
			Attempt: attempt,
		})
		if cancelAttempt != nil {
			cancelAttempt()
		}

		result.Metrics.Attempts = attempt

		if err == nil {
			r.captureEvidence(graphID, task.ID, output, result)
			result.Output = output.Output
			result.GeneratedTests = output.GeneratedTests
			transition(task, contract.TaskStatusSucceeded)
			rl.TaskSuccess(task.ID, time.Since(attemptStart))
			return result
		}

		// Task deadline overruns surface as a retryable timeout unless the
		// whole run is being torn down.
		if stderrors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = errors.NewToolTimeoutError(task.Tool, err)
		}

		result.Metrics.RetryHistory = append(result.Metrics.RetryHistory, contract.AttemptRecord{
			Attempt:   attempt,
			StartedAt: attemptStart.UTC(),
			Duration:  time.Since(attemptStart),
			Error:     err.Error(),
			ErrorCode: string(errors.CodeOf(err)),
		})

		if ctx.Err() != nil {
			transition(task, contract.TaskStatusCancelled)
			rl.TaskCancel(task.ID)
			return result
		}

		if errors.IsInfrastructure(err) {
			st.abort(err)
			abort()
			return r.failTask(task, result, rl, err)
		}

		if errors.CodeOf(err) == errors.ErrCodeSandboxPolicyViolation {
			r.logger.Security("sandbox policy violation",
				"graph_id", graphID, "task_id", task.ID, "tool", task.Tool, "violation", err.Error())
			rl.Security(task.ID, err.Error())
			return r.failTask(task, result, rl, err)
		}

		if errors.IsRetryable(err) && r.config.Retry.Allows(attempt) {
			transition(task, contract.TaskStatusRetrying)
			delay := r.config.Retry.Delay(attempt)
			rl.TaskRetry(task.ID, attempt, delay, err)
			r.config.Metrics.ObserveRetry()
			r.logger.WithError(err).Warn("task attempt failed, retrying",
				"graph_id", graphID, "task_id", task.ID, "attempt", attempt, "delay_ms", delay.Milliseconds())

			if waitErr := waitRetry(ctx, delay); waitErr != nil {
				transition(task, contract.TaskStatusCancelled)
				rl.TaskCancel(task.ID)
				return result
			}
			transition(task, contract.TaskStatusRunning)
			attempt++
			continue
		}

		return r.failTask(task, result, rl, err)
	}
}

func (r *Runner) failTask(task *contract.Task, result *contract.TaskResult, rl *runlog.Logger, err error) *contract.TaskResult {
	transition(task, contract.TaskStatusFailed)
	result.Error = err.Error()
	result.ErrorCode = string(errors.CodeOf(err))
	rl.TaskFailure(task.ID, result.Metrics.Attempts, err)
	r.logger.WithError(err).Error("task failed",
		"task_id", task.ID, "tool", task.Tool, "attempts", result.Metrics.Attempts)
	return result
}

func (r *Runner) skipUndispatched(task *contract.Task, rl *runlog.Logger) *contract.TaskResult {
	transition(task, contract.TaskStatusSkipped)
	rl.TaskSkip(task.ID, "run ended before dispatch")
	return &contract.TaskResult{
		TaskID: task.ID,
		Tool:   task.Tool,
		Status: contract.TaskStatusSkipped,
		Error:  "run ended before dispatch",
	}
}

// captureEvidence writes the attempt's streams and artifacts to the
// evidence store. Capture failures degrade to a log line; execution
// results never depend on evidence I/O.
func (r *Runner) captureEvidence(graphID, taskID string, output *ToolOutput, result *contract.TaskResult) {
	store := r.config.Evidence
	if store == nil {
		return
	}

	put := func(kind string, data []byte) {
		if len(data) == 0 {
			return
		}
		ref, err := store.Put(graphID, taskID, kind, data)
		if err != nil {
			r.logger.WithError(err).Warn("evidence capture failed",
				"task_id", taskID, "kind", kind)
			return
		}
		result.Evidence = append(result.Evidence, ref)
	}

	put(evidence.KindStdout, output.Stdout)
	put(evidence.KindStderr, output.Stderr)
	for _, data := range output.Artifacts {
		put(evidence.KindArtifact, data)
	}
	if output.GeneratedTests != "" {
		put(evidence.KindArtifact, []byte(output.GeneratedTests))
	}
}

func (r *Runner) newRunLog(graphID string) (*runlog.Logger, error) {
	return runlog.NewLogger(runlog.Config{
		GraphID: graphID,
		LogDir:  r.config.RunLogDir,
		Enabled: r.config.RunLogDir != "",
	})
}

// transition applies a lifecycle transition, dropping invalid ones.
// The scheduler only drives legal transitions; an invalid one here means a
// task already reached a terminal state through another path.
func transition(task *contract.Task, to contract.TaskStatus) error {
	if err := contract.ValidateTaskTransition(task.Status, to); err != nil {
		return err
	}
	task.Status = to
	return nil
}
