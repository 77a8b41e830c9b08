package runner

import (
	"context"
	"testing"
	"time"
)

func TestRetryConfig_Allows(t *testing.T) {
	tests := []struct {
		name           string
		config         RetryConfig
		failedAttempts int
		want           bool
	}{
		{"none never retries", RetryConfig{Strategy: RetryNone, MaxRetries: 5}, 1, false},
		{"empty strategy never retries", RetryConfig{MaxRetries: 5}, 1, false},
		{"within budget", RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 2}, 2, true},
		{"budget exhausted", RetryConfig{Strategy: RetryFixedDelay, MaxRetries: 2}, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Allows(tt.failedAttempts); got != tt.want {
				t.Errorf("Allows(%d) = %v, want %v", tt.failedAttempts, got, tt.want)
			}
		})
	}
}

func TestRetryConfig_FixedDelay(t *testing.T) {
	config := RetryConfig{Strategy: RetryFixedDelay, Interval: 100 * time.Millisecond}

	for retry := 1; retry <= 3; retry++ {
		if got := config.Delay(retry); got != 100*time.Millisecond {
			t.Errorf("Delay(%d) = %v, want 100ms", retry, got)
		}
	}
}

func TestRetryConfig_ExponentialBackoff(t *testing.T) {
	config := RetryConfig{
		Strategy:    RetryExponentialBackoff,
		Interval:    100 * time.Millisecond,
		MaxInterval: 500 * time.Millisecond,
	}

	wants := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		500 * time.Millisecond, // capped
		500 * time.Millisecond,
	}
	for i, want := range wants {
		if got := config.Delay(i + 1); got != want {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, want)
		}
	}
}

func TestRetryConfig_JitterBounds(t *testing.T) {
	config := RetryConfig{Strategy: RetryFixedDelay, Interval: 100 * time.Millisecond, Jitter: true}

	for i := 0; i < 50; i++ {
		delay := config.Delay(1)
		if delay < 50*time.Millisecond || delay > 100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 100ms]", delay)
		}
	}
}

func TestRetryConfig_Validate(t *testing.T) {
	valid := RetryConfig{Strategy: RetryExponentialBackoff, MaxRetries: 3, Interval: time.Second}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	invalid := []RetryConfig{
		{Strategy: "eventually"},
		{Strategy: RetryFixedDelay, MaxRetries: -1},
		{Strategy: RetryFixedDelay, Interval: -time.Second},
	}
	for _, config := range invalid {
		if err := config.Validate(); err == nil {
			t.Errorf("config %+v should be rejected", config)
		}
	}
}

func TestWaitRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitRetry(ctx, time.Minute); err == nil {
		t.Fatal("waitRetry should return the context error when cancelled")
	}
}

func TestSandboxPolicy_Checks(t *testing.T) {
	policy := &SandboxPolicy{
		AllowedImages:   []string{"golang:*", "alpine:3.20"},
		AllowedNetworks: []string{"bridge"},
		AllowedMounts:   []string{"/tmp"},
	}

	if err := policy.CheckImage("golang:1.24"); err != nil {
		t.Errorf("glob-matched image rejected: %v", err)
	}
	if err := policy.CheckImage("evil:latest"); err == nil {
		t.Error("unlisted image accepted")
	}

	if err := policy.CheckNetwork("none"); err != nil {
		t.Errorf("isolated network rejected: %v", err)
	}
	if err := policy.CheckNetwork("bridge"); err != nil {
		t.Errorf("allow-listed network rejected: %v", err)
	}
	if err := policy.CheckNetwork("host"); err == nil {
		t.Error("unlisted network accepted")
	}

	if err := policy.CheckMount("/tmp/work"); err != nil {
		t.Errorf("allow-listed mount rejected: %v", err)
	}
	if err := policy.CheckMount("/etc"); err == nil {
		t.Error("unlisted mount accepted")
	}
}
