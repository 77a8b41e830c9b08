// Package cmd wires the CLI surface: plan, run, review, version.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/conductor/internal/log"
)

var (
	flagLogLevel  string
	flagLogFormat string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Task graph orchestration: plan, execute, review",
	Long: `conductor plans goals into executable task graphs, runs them through a
sandboxed tool executor with retries and evidence capture, and reviews the
results against declared output schemas, generated tests, and acceptance
criteria.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command with the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newLogger() *log.Logger {
	if flagVerbose {
		return log.Development()
	}
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(flagLogLevel)
	cfg.Format = log.ParseFormat(flagLogFormat)
	return log.New(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "json", "log format (json, text)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose development logging")
}
