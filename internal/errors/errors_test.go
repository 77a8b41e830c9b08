package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestConductorError_Error(t *testing.T) {
	err := New(ErrCodeToolTimeout, "tool fetch exceeded its wall-clock limit")

	msg := err.Error()
	if !strings.Contains(msg, "[TASK-002]") {
		t.Errorf("error message should contain the code, got %q", msg)
	}
	if !strings.Contains(msg, "wall-clock limit") {
		t.Errorf("error message should contain the message, got %q", msg)
	}
}

func TestConductorError_ErrorWithCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(ErrCodeToolTransient, "tool invocation failed", cause)

	msg := err.Error()
	if !strings.Contains(msg, "connection reset") {
		t.Errorf("error message should contain the cause, got %q", msg)
	}
}

func TestConductorError_ErrorWithSuggestions(t *testing.T) {
	err := New(ErrCodeBudgetInfeasible, "budget infeasible").
		WithSuggestion("raise the budget").
		WithSuggestion("drop optional steps")

	msg := err.Error()
	if !strings.Contains(msg, "Suggestions:") {
		t.Errorf("error message should contain suggestions section, got %q", msg)
	}
	if !strings.Contains(msg, "raise the budget") {
		t.Errorf("error message should contain first suggestion, got %q", msg)
	}
}

func TestConductorError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := Wrap(ErrCodeFileReadFailed, "read failed", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "direct conductor error",
			err:  New(ErrCodeSchemaViolation, "bad output"),
			want: ErrCodeSchemaViolation,
		},
		{
			name: "wrapped conductor error",
			err:  stderrors.Join(stderrors.New("outer"), New(ErrCodeToolTimeout, "slow")),
			want: ErrCodeToolTimeout,
		},
		{
			name: "plain error",
			err:  stderrors.New("plain"),
			want: "",
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient tool error", New(ErrCodeToolTransient, "flaky"), true},
		{"timeout", New(ErrCodeToolTimeout, "slow"), true},
		{"schema violation", New(ErrCodeSchemaViolation, "bad output"), false},
		{"permission denied", New(ErrCodePermissionDenied, "denied"), false},
		{"sandbox policy violation", New(ErrCodeSandboxPolicyViolation, "breach"), false},
		{"executor unavailable", New(ErrCodeExecutorUnavailable, "down"), false},
		{"plain error", stderrors.New("plain"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInfrastructure(t *testing.T) {
	if !IsInfrastructure(NewExecutorUnavailableError(nil)) {
		t.Error("executor unavailable should be an infrastructure error")
	}
	if !IsInfrastructure(NewSandboxUnavailableError(nil)) {
		t.Error("sandbox unavailable should be an infrastructure error")
	}
	if IsInfrastructure(New(ErrCodeToolTimeout, "slow")) {
		t.Error("a task timeout is not an infrastructure error")
	}
}

func TestNewSandboxPolicyViolationError(t *testing.T) {
	err := NewSandboxPolicyViolationError("network destination 10.0.0.1 not in allow-list")

	if CodeOf(err) != ErrCodeSandboxPolicyViolation {
		t.Errorf("unexpected code %q", CodeOf(err))
	}
	if IsRetryable(err) {
		t.Error("sandbox policy violations must never be retryable")
	}
	if !strings.Contains(err.Error(), "10.0.0.1") {
		t.Errorf("error should carry the violation detail, got %q", err.Error())
	}
}
