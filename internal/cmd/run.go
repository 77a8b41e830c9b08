package cmd

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/evidence"
	"github.com/felixgeelhaar/conductor/internal/metrics"
	"github.com/felixgeelhaar/conductor/internal/planner"
	"github.com/felixgeelhaar/conductor/internal/runner"
)

var (
	runGoalPath  string
	runGraphPath string
	runOutPath   string

	runMaxParallelism int
	runEvidenceDir    string
	runLogDir         string

	runRetryStrategy string
	runMaxRetries    int
	runRetryInterval time.Duration
	runRetryJitter   bool

	runImage       string
	runNetwork     string
	runCPULimit    string
	runMemLimit    string
	runWorkdir     string
	runWallTimeout time.Duration

	runAllowImages   []string
	runAllowNetworks []string
	runAllowMounts   []string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute a task graph in the sandbox",
	Long: `Run executes a task graph: plan from the goal file, or load a graph a
previous plan command produced. Tools run in hardened docker containers;
stdout, stderr, and artifacts are captured into the evidence store and
every state transition lands in the NDJSON run log.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		gf, err := loadGoalFile(runGoalPath)
		if err != nil {
			return err
		}
		registry, err := gf.registry()
		if err != nil {
			return err
		}

		m := metrics.New(prometheus.NewRegistry())

		var graph *contract.TaskGraph
		maxParallelism := runMaxParallelism

		if runGraphPath != "" {
			var doc planDocument
			if err := readJSONFile(runGraphPath, &doc); err != nil {
				return err
			}
			graph = doc.Graph
			if maxParallelism == 0 {
				maxParallelism = doc.MaxParallelism
			}
		} else {
			policy, err := gf.policy()
			if err != nil {
				return err
			}
			planContext, err := gf.planContext()
			if err != nil {
				return err
			}
			planStart := time.Now()
			plan, err := planner.New(nil, logger).Plan(cmd.Context(), gf.goal(), policy, planContext)
			if err != nil {
				m.ObservePlan(string(policy.PreferredStrategy), "error", time.Since(planStart))
				return err
			}
			m.ObservePlan(string(plan.Strategy), "success", time.Since(planStart))
			graph = plan.Graph
			if maxParallelism == 0 {
				maxParallelism = plan.MaxParallelism
			}
		}

		store, err := evidence.NewStore(runEvidenceDir)
		if err != nil {
			return err
		}

		executor := runner.NewSandboxExecutor(runner.SandboxConfig{
			Image:       runImage,
			Network:     runNetwork,
			CPULimit:    runCPULimit,
			MemLimit:    runMemLimit,
			Workdir:     runWorkdir,
			WallTimeout: runWallTimeout,
		}, &runner.SandboxPolicy{
			AllowedImages:   runAllowImages,
			AllowedNetworks: runAllowNetworks,
			AllowedMounts:   runAllowMounts,
		})

		r, err := runner.New(runner.Config{
			MaxParallelism: maxParallelism,
			Retry: runner.RetryConfig{
				Strategy:   runner.RetryStrategy(runRetryStrategy),
				MaxRetries: runMaxRetries,
				Interval:   runRetryInterval,
				Jitter:     runRetryJitter,
			},
			Executor:  executor,
			Registry:  registry,
			Evidence:  store,
			RunLogDir: runLogDir,
			Logger:    logger,
			Metrics:   m,
		})
		if err != nil {
			return err
		}

		result, runErr := r.Run(cmd.Context(), graph)
		if result != nil {
			if err := writeJSON(runOutPath, result); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		return completionError(result)
	},
}

// completionError maps a terminal graph result to the command's error so a
// failed or interrupted run never exits zero.
func completionError(result *contract.GraphResult) error {
	switch result.Status {
	case contract.GraphStatusFailed:
		return fmt.Errorf("graph %s finished with status %s", result.GraphID, result.Status)
	case contract.GraphStatusCancelled:
		return fmt.Errorf("graph %s was cancelled before completion", result.GraphID)
	case contract.GraphStatusAborted:
		return fmt.Errorf("graph %s was aborted: %s", result.GraphID, result.Detail)
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runGoalPath, "goal", "", "goal file (YAML) providing intent and tool specs")
	runCmd.Flags().StringVar(&runGraphPath, "graph", "", "pre-built plan JSON (skips planning)")
	runCmd.Flags().StringVarP(&runOutPath, "out", "o", "", "output path for the graph result JSON (default: stdout)")

	runCmd.Flags().IntVar(&runMaxParallelism, "max-parallelism", 0, "max concurrent tasks (default: plan's bound, else 4)")
	runCmd.Flags().StringVar(&runEvidenceDir, "evidence-dir", ".conductor/evidence", "evidence store root")
	runCmd.Flags().StringVar(&runLogDir, "runlog-dir", ".conductor/runlog", "run log directory (empty disables persistence)")

	runCmd.Flags().StringVar(&runRetryStrategy, "retry-strategy", "none", "retry strategy (none, fixed_delay, exponential_backoff)")
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", 0, "retries after the first attempt")
	runCmd.Flags().DurationVar(&runRetryInterval, "retry-interval", 2*time.Second, "base delay between attempts")
	runCmd.Flags().BoolVar(&runRetryJitter, "retry-jitter", false, "randomize retry delays")

	runCmd.Flags().StringVar(&runImage, "image", "alpine:3.20", "sandbox container image")
	runCmd.Flags().StringVar(&runNetwork, "network", "none", "sandbox network mode")
	runCmd.Flags().StringVar(&runCPULimit, "cpu-limit", "", "sandbox CPU limit (docker --cpus syntax)")
	runCmd.Flags().StringVar(&runMemLimit, "mem-limit", "", "sandbox memory limit (docker --memory syntax)")
	runCmd.Flags().StringVar(&runWorkdir, "workdir", "", "host directory mounted at /workspace")
	runCmd.Flags().DurationVar(&runWallTimeout, "wall-timeout", 5*time.Minute, "wall-clock limit per attempt")

	runCmd.Flags().StringSliceVar(&runAllowImages, "allow-image", []string{"alpine:*", "golang:*"}, "allowed image glob patterns")
	runCmd.Flags().StringSliceVar(&runAllowNetworks, "allow-network", nil, "allowed network modes besides none")
	runCmd.Flags().StringSliceVar(&runAllowMounts, "allow-mount", nil, "allowed host mount prefixes")

	runCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(runCmd)
}
