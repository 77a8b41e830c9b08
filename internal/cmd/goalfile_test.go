package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/conductor/internal/errors"
	"github.com/felixgeelhaar/conductor/internal/planner"
)

const sampleGoal = `intent: summarize the nightly build
tools:
  - name: fetch
    version: 1.0.0
    params:
      - name: url
        type: string
        required: true
    output:
      type: object
      required: [data]
      properties:
        data:
          type: string
  - name: summarize
    version: 1.0.0
policy:
  max_total_cost: 2.5
  max_total_latency: 90s
  max_parallelism: 3
  strategy: optimized
history:
  - tool: fetch
    duration: 4s
    cost: 0.2
    failed: true
`

func writeGoal(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadGoalFile(t *testing.T) {
	gf, err := loadGoalFile(writeGoal(t, sampleGoal))
	require.NoError(t, err)

	goal := gf.goal()
	assert.Equal(t, "summarize the nightly build", goal.Intent)
	require.Len(t, goal.Tools, 2)

	// The output schema survives the YAML→JSON pivot.
	fetch := goal.Tools[0]
	require.NotNil(t, fetch.Output)
	assert.Contains(t, fetch.Output.Required, "data")
	assert.Contains(t, fetch.OutputProperties(), "data")

	policy, err := gf.policy()
	require.NoError(t, err)
	assert.Equal(t, 2.5, policy.MaxTotalCost)
	assert.Equal(t, 90*time.Second, policy.MaxTotalLatency)
	assert.Equal(t, planner.StrategyOptimized, policy.PreferredStrategy)

	planContext, err := gf.planContext()
	require.NoError(t, err)
	require.Len(t, planContext.History, 1)
	assert.Equal(t, 4*time.Second, planContext.History[0].Duration)
	assert.True(t, planContext.History[0].Failed)

	registry, err := gf.registry()
	require.NoError(t, err)
	_, ok := registry.Get("summarize")
	assert.True(t, ok)
}

func TestLoadGoalFile_BadDuration(t *testing.T) {
	gf, err := loadGoalFile(writeGoal(t, "intent: x\npolicy:\n  max_total_latency: soon\n"))
	require.NoError(t, err)

	_, err = gf.policy()
	assert.Error(t, err)
}

func TestLoadGoalFile_Missing(t *testing.T) {
	_, err := loadGoalFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Equal(t, errors.ErrCodeFileNotFound, errors.CodeOf(err))
}
