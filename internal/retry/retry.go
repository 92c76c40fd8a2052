// Package retry wraps fallible operations with classification-aware
// exponential backoff. It knows nothing about what the operation does;
// the same policy wraps any external call.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultConfig matches the upstream rate ceilings this engine is tuned
// for: delays of 2, 4, 8, ... seconds capped at 128.
var DefaultConfig = Config{
	MaxAttempts: 7,
	BaseDelay:   2 * time.Second,
	MaxDelay:    128 * time.Second,
	Jitter:      true,
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultConfig.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig.MaxDelay
	}
	return c
}

// Delay returns the backoff before retry attempt n (1-indexed):
// min(MaxDelay, BaseDelay * 2^(n-1)). With Jitter enabled the result is
// a random duration in [delay/2, delay) to avoid thundering-herd against
// the same upstream when many workers back off together.
func (c Config) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(2, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter {
		d = d/2 + rand.Float64()*d/2
	}
	return time.Duration(d)
}

// RetryFunc is notified before each delayed retry.
type RetryFunc func(attempt int, class Class, delay time.Duration, err error)

// Runner executes operations under a retry policy.
type Runner struct {
	cfg     Config
	onRetry RetryFunc
}

// NewRunner creates a Runner. Zero config fields fall back to defaults.
func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg.withDefaults()}
}

// OnRetry registers a hook invoked before every backoff sleep.
func (r *Runner) OnRetry(fn RetryFunc) {
	r.onRetry = fn
}

// Do runs op until it succeeds, fails fatally, or exhausts the attempt
// cap. Fatal failures surface immediately with no delay. Backoff sleeps
// honor ctx cancellation.
func (r *Runner) Do(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		class := Classify(err)
		if class == ClassFatal {
			return err
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		delay := r.cfg.Delay(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, class, delay, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}
