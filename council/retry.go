package council

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/councilmesh/core"
)

// RetryConfig bounds the retry policy applied to every collaborator call.
type RetryConfig struct {
	// MaxAttempts counts the first try; 3 means two retries.
	MaxAttempts int

	// InitialBackoff doubles after each failed attempt up to MaxBackoff.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// CallTimeout caps a single attempt; 0 disables the per-call deadline.
	CallTimeout time.Duration
}

// DefaultRetryConfig returns the standard three-attempt policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		CallTimeout:    2 * time.Minute,
	}
}

func (c RetryConfig) validate() error {
	if c.MaxAttempts < 1 {
		return core.NewConfigError("retry.max_attempts", "must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return core.NewConfigError("retry.backoff", "backoff durations must be non-negative")
	}
	return nil
}

// withRetry runs op under the configured attempt limit and per-call timeout.
// Collaborator failures marked non-retryable, configuration errors and data
// invariant violations surface immediately; everything else backs off and
// retries until the attempts are exhausted, then the last error surfaces.
func withRetry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		attemptCtx := ctx
		cancel := func() {}
		if cfg.CallTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, cfg.CallTimeout)
		}
		err := op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt == cfg.MaxAttempts {
			return lastErr
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		if backoff *= 2; backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return lastErr
}

func retryable(err error) bool {
	if core.IsConfiguration(err) {
		return false
	}
	var invErr *core.DataInvariantError
	if errors.As(err, &invErr) {
		return false
	}
	if collab, ok := core.AsCollaborator(err); ok {
		return collab.Retryable()
	}
	// transport-level failures without classification retry too
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
