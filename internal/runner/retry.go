package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// RetryStrategy names how failed attempts are re-scheduled.
type RetryStrategy string

const (
	// RetryNone disables retries; every failure is terminal.
	RetryNone RetryStrategy = "none"

	// RetryFixedDelay waits a constant interval between attempts.
	RetryFixedDelay RetryStrategy = "fixed_delay"

	// RetryExponentialBackoff doubles the interval per attempt, capped at
	// MaxInterval.
	RetryExponentialBackoff RetryStrategy = "exponential_backoff"
)

// RetryConfig controls re-execution of retryable task failures.
// Only transient tool errors and timeouts are ever retried; schema,
// permission, and sandbox-policy failures fail the task on first strike.
type RetryConfig struct {
	// Strategy selects the delay schedule (default: none)
	Strategy RetryStrategy `yaml:"strategy"`

	// MaxRetries is the number of retries after the first attempt, so a
	// task runs at most MaxRetries+1 times
	MaxRetries int `yaml:"max_retries"`

	// Interval is the base delay between attempts
	Interval time.Duration `yaml:"interval"`

	// Multiplier scales the interval per attempt for exponential backoff
	// (default: 2)
	Multiplier float64 `yaml:"multiplier"`

	// MaxInterval caps the backoff delay, zero means uncapped
	MaxInterval time.Duration `yaml:"max_interval"`

	// Jitter randomizes each delay uniformly within [delay/2, delay] to
	// spread retry bursts
	Jitter bool `yaml:"jitter"`
}

// Validate checks the retry configuration.
func (c *RetryConfig) Validate() error {
	switch c.Strategy {
	case "", RetryNone, RetryFixedDelay, RetryExponentialBackoff:
	default:
		return fmt.Errorf("unknown retry strategy %q", c.Strategy)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Interval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}
	if c.Multiplier < 0 {
		return fmt.Errorf("retry multiplier cannot be negative")
	}
	return nil
}

// Allows reports whether another retry is permitted after the given number
// of failed attempts.
func (c *RetryConfig) Allows(failedAttempts int) bool {
	if c.Strategy == "" || c.Strategy == RetryNone {
		return false
	}
	return failedAttempts <= c.MaxRetries
}

// Delay computes the wait before the given retry (1-based).
func (c *RetryConfig) Delay(retry int) time.Duration {
	delay := c.Interval

	if c.Strategy == RetryExponentialBackoff {
		multiplier := c.Multiplier
		if multiplier == 0 {
			multiplier = 2
		}
		for i := 1; i < retry; i++ {
			delay = time.Duration(float64(delay) * multiplier)
			if c.MaxInterval > 0 && delay >= c.MaxInterval {
				delay = c.MaxInterval
				break
			}
		}
	}

	if c.Jitter && delay > 0 {
		half := delay / 2
		delay = half + time.Duration(rand.Int63n(int64(half)+1))
	}
	return delay
}

// waitRetry sleeps for the delay, returning early with the context error
// if the run is cancelled while waiting.
func waitRetry(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
