package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/conductor/internal/contract"
)

func TestParseOutputPayload(t *testing.T) {
	payload, err := parseOutputPayload([]byte("progress line\nanother line\n{\"summary\":\"done\",\"count\":3}\n"))
	require.NoError(t, err)
	assert.Equal(t, "done", payload["summary"])

	_, err = parseOutputPayload([]byte(""))
	assert.Error(t, err)

	_, err = parseOutputPayload([]byte("not json at all"))
	assert.Error(t, err)
}

func TestSandboxExecutor_BuildArgs(t *testing.T) {
	exec := NewSandboxExecutor(SandboxConfig{
		Image:    "golang:1.24",
		CPULimit: "2",
		MemLimit: "512m",
		Workdir:  "/tmp/work",
	}, &SandboxPolicy{
		AllowedImages: []string{"golang:*"},
		AllowedMounts: []string{"/tmp"},
	})

	args, err := exec.buildArgs(ToolCall{
		Task: &contract.Task{ID: "t1", Tool: "build", Args: map[string]any{"target": "./..."}},
		Spec: &contract.ToolSpec{Name: "build", Version: "1.0.0"},
	})
	require.NoError(t, err)

	// Hardening flags are always present.
	assert.Contains(t, args, "--read-only")
	assert.Contains(t, args, "--cap-drop")
	assert.Contains(t, args, "no-new-privileges")

	// Defaults to the isolated network mode.
	joined := ""
	for i, a := range args {
		if a == "--network" {
			joined = args[i+1]
		}
	}
	assert.Equal(t, "none", joined)

	// Image, tool name, then the JSON-encoded args.
	assert.Equal(t, "golang:1.24", args[len(args)-3])
	assert.Equal(t, "build", args[len(args)-2])
	assert.JSONEq(t, `{"target":"./..."}`, args[len(args)-1])
}
