package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/conductor/internal/contract"
	"github.com/felixgeelhaar/conductor/internal/evidence"
	"github.com/felixgeelhaar/conductor/internal/reviewer"
	"github.com/felixgeelhaar/conductor/internal/runner"
)

var (
	reviewResultPath     string
	reviewGoalPath       string
	reviewAcceptancePath string
	reviewTaskID         string
	reviewOutPath        string
	reviewEvidenceDir    string

	reviewImage       string
	reviewWallTimeout time.Duration
	reviewAllowImages []string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review task results against schemas, tests, and acceptance criteria",
	Long: `Review loads a graph result a previous run produced and reviews its task
results: output payloads against the tools' declared schemas, generated
tests inside the sandbox, and acceptance criteria from an optional YAML
spec. One report is written per reviewed task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		gf, err := loadGoalFile(reviewGoalPath)
		if err != nil {
			return err
		}
		registry, err := gf.registry()
		if err != nil {
			return err
		}

		var result contract.GraphResult
		if err := readJSONFile(reviewResultPath, &result); err != nil {
			return err
		}

		var acceptance *reviewer.AcceptanceSpec
		if reviewAcceptancePath != "" {
			acceptance, err = reviewer.LoadAcceptanceSpec(reviewAcceptancePath)
			if err != nil {
				return err
			}
		}

		config := reviewer.Config{Logger: logger}
		if reviewEvidenceDir != "" {
			store, err := evidence.NewStore(reviewEvidenceDir)
			if err != nil {
				return err
			}
			config.Evidence = store
		}
		if reviewImage != "" {
			config.Harness = reviewer.NewSandboxHarness(runner.NewSandboxExecutor(runner.SandboxConfig{
				Image:       reviewImage,
				WallTimeout: reviewWallTimeout,
			}, &runner.SandboxPolicy{AllowedImages: reviewAllowImages}))
		}
		rev := reviewer.New(config)

		reports := make([]*contract.ReviewReport, 0, len(result.TaskResults))
		failed := false
		for _, taskResult := range orderedResults(&result) {
			if reviewTaskID != "" && taskResult.TaskID != reviewTaskID {
				continue
			}
			if taskResult.Status != contract.TaskStatusSucceeded {
				continue
			}

			spec, _ := registry.Get(taskResult.Tool)
			report, err := rev.Review(cmd.Context(), reviewer.Request{
				GraphID:    result.GraphID,
				Spec:       spec,
				Result:     taskResult,
				Acceptance: acceptance,
			})
			if err != nil {
				return err
			}
			reports = append(reports, report)
			if report.Verdict != contract.VerdictPassed {
				failed = true
			}
		}

		if len(reports) == 0 {
			return fmt.Errorf("no succeeded task results matched the review selection")
		}
		if err := writeJSON(reviewOutPath, reports); err != nil {
			return err
		}
		if failed {
			return fmt.Errorf("review found failing checks")
		}
		return nil
	},
}

// orderedResults returns task results sorted by task id so report output
// is deterministic across runs.
func orderedResults(result *contract.GraphResult) []*contract.TaskResult {
	ordered := make([]*contract.TaskResult, 0, len(result.TaskResults))
	for _, tr := range result.TaskResults {
		ordered = append(ordered, tr)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TaskID < ordered[j].TaskID })
	return ordered
}

func init() {
	reviewCmd.Flags().StringVar(&reviewResultPath, "result", "", "graph result JSON from a previous run")
	reviewCmd.Flags().StringVar(&reviewGoalPath, "goal", "", "goal file (YAML) providing the tool specs")
	reviewCmd.Flags().StringVar(&reviewAcceptancePath, "acceptance", "", "acceptance spec (YAML)")
	reviewCmd.Flags().StringVar(&reviewTaskID, "task", "", "review only this task id")
	reviewCmd.Flags().StringVarP(&reviewOutPath, "out", "o", "", "output path for the review reports JSON (default: stdout)")
	reviewCmd.Flags().StringVar(&reviewEvidenceDir, "evidence-dir", ".conductor/evidence", "evidence store root for test output")

	reviewCmd.Flags().StringVar(&reviewImage, "image", "", "sandbox image for running generated tests (empty disables the harness)")
	reviewCmd.Flags().DurationVar(&reviewWallTimeout, "wall-timeout", 5*time.Minute, "wall-clock limit for the test harness")
	reviewCmd.Flags().StringSliceVar(&reviewAllowImages, "allow-image", []string{"alpine:*", "golang:*"}, "allowed image glob patterns")

	reviewCmd.MarkFlagRequired("result")
	reviewCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(reviewCmd)
}
