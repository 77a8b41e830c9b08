package cmd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/conductor/internal/metrics"
	"github.com/felixgeelhaar/conductor/internal/planner"
)

var (
	planGoalPath string
	planOutPath  string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build a task graph from a goal file",
	Long: `Plan reads a goal file (intent, tool specifications, policy, optional
execution history), proposes candidate steps, arranges them under the
selected strategy, and writes the validated task graph as JSON.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		gf, err := loadGoalFile(planGoalPath)
		if err != nil {
			return err
		}
		policy, err := gf.policy()
		if err != nil {
			return err
		}
		planContext, err := gf.planContext()
		if err != nil {
			return err
		}

		m := metrics.New(prometheus.NewRegistry())
		start := time.Now()
		p := planner.New(nil, logger)
		plan, err := p.Plan(cmd.Context(), gf.goal(), policy, planContext)
		if err != nil {
			m.ObservePlan(string(policy.PreferredStrategy), "error", time.Since(start))
			return err
		}
		m.ObservePlan(string(plan.Strategy), "success", time.Since(start))
		logger.Debug("planning finished", "elapsed_ms", time.Since(start).Milliseconds())

		return writeJSON(planOutPath, planDocument{
			Strategy:       string(plan.Strategy),
			MaxParallelism: plan.MaxParallelism,
			Graph:          plan.Graph,
		})
	},
}

func init() {
	planCmd.Flags().StringVar(&planGoalPath, "goal", "", "goal file (YAML)")
	planCmd.Flags().StringVarP(&planOutPath, "out", "o", "", "output path for the plan JSON (default: stdout)")
	planCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(planCmd)
}
