package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/felixgeelhaar/conductor/internal/errors"
)

// SandboxConfig controls the container every tool invocation runs in.
type SandboxConfig struct {
	// Image is the container image tools run in
	Image string `yaml:"image"`

	// Network is the docker network mode (default: none)
	Network string `yaml:"network"`

	// CPULimit and MemLimit bound container resources (docker syntax)
	CPULimit string `yaml:"cpu_limit"`
	MemLimit string `yaml:"mem_limit"`

	// PidsLimit bounds the process count inside the container
	PidsLimit int `yaml:"pids_limit"`

	// WallTimeout bounds one attempt's wall-clock time, independent of any
	// task deadline
	WallTimeout time.Duration `yaml:"wall_timeout"`

	// Workdir is an optional host directory mounted at /workspace
	Workdir string `yaml:"workdir"`

	// Env passes environment variables into the container
	Env map[string]string `yaml:"env"`
}

func (c *SandboxConfig) withDefaults() SandboxConfig {
	cfg := *c
	if cfg.Network == "" {
		cfg.Network = "none"
	}
	if cfg.PidsLimit == 0 {
		cfg.PidsLimit = 256
	}
	if cfg.WallTimeout == 0 {
		cfg.WallTimeout = 5 * time.Minute
	}
	return cfg
}

// SandboxExecutor runs tools inside hardened docker containers: read-only
// root, all capabilities dropped, no new privileges, pids limit, and the
// isolated network mode unless the policy grants more. The tool's command
// prints its output payload as JSON on the last line of stdout.
type SandboxExecutor struct {
	config SandboxConfig
	policy *SandboxPolicy
}

// NewSandboxExecutor creates a docker-backed executor. A nil policy denies
// everything outside the defaults.
func NewSandboxExecutor(config SandboxConfig, policy *SandboxPolicy) *SandboxExecutor {
	if policy == nil {
		policy = &SandboxPolicy{}
	}
	return &SandboxExecutor{config: config.withDefaults(), policy: policy}
}

// Ping verifies the docker daemon is reachable.
func (e *SandboxExecutor) Ping(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "version", "--format", "{{.Server.Version}}")
	if err := cmd.Run(); err != nil {
		return errors.NewSandboxUnavailableError(err)
	}
	return nil
}

// Execute runs one attempt in the sandbox.
func (e *SandboxExecutor) Execute(ctx context.Context, call ToolCall) (*ToolOutput, error) {
	if err := e.policy.CheckImage(e.config.Image); err != nil {
		return nil, err
	}
	if err := e.policy.CheckNetwork(e.config.Network); err != nil {
		return nil, err
	}
	if e.config.Workdir != "" {
		if err := e.policy.CheckMount(e.config.Workdir); err != nil {
			return nil, err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.WallTimeout)
	defer cancel()

	args, err := e.buildArgs(call)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, "docker", args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, errors.NewToolTimeoutError(call.Spec.Name, runCtx.Err())
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return nil, errors.NewExecutorUnavailableError(runErr)
		}
		return nil, errors.Wrap(errors.ErrCodeToolTransient,
			fmt.Sprintf("tool %s exited non-zero", call.Spec.Name), runErr).
			WithSuggestion("Inspect the captured stderr evidence for the failure cause")
	}

	output, err := parseOutputPayload(stdout.Bytes())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSchemaViolation,
			fmt.Sprintf("tool %s did not print a JSON output payload", call.Spec.Name), err)
	}

	return &ToolOutput{
		Output:   output,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: duration,
	}, nil
}

// buildArgs assembles the docker run invocation with security constraints.
func (e *SandboxExecutor) buildArgs(call ToolCall) ([]string, error) {
	args := []string{
		"run", "--rm",
		"--network", e.config.Network,
		"--read-only",
		"--pids-limit", fmt.Sprintf("%d", e.config.PidsLimit),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
	}

	if e.config.CPULimit != "" {
		args = append(args, "--cpus", e.config.CPULimit)
	}
	if e.config.MemLimit != "" {
		args = append(args, "--memory", e.config.MemLimit)
	}
	if e.config.Workdir != "" {
		args = append(args,
			"-v", fmt.Sprintf("%s:/workspace", e.config.Workdir),
			"-w", "/workspace",
		)
	}
	for key, value := range e.config.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", key, value))
	}

	argsJSON, err := json.Marshal(call.Task.Args)
	if err != nil {
		return nil, fmt.Errorf("marshal task args: %w", err)
	}

	args = append(args, e.config.Image, call.Spec.Name, string(argsJSON))
	return args, nil
}

// parseOutputPayload reads the last non-empty stdout line as the tool's
// JSON output payload. Tools are free to print progress above it.
func parseOutputPayload(stdout []byte) (map[string]any, error) {
	lines := bytes.Split(bytes.TrimSpace(stdout), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal(line, &payload); err != nil {
			return nil, fmt.Errorf("last stdout line is not a JSON object: %w", err)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("stdout is empty")
}
