package services

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/AnshRaj112/soconnect-backend/internal/repository"
)

// ReadRetry configures retries of idempotent store reads. Writes are never retried.
type ReadRetry struct {
	Base       time.Duration
	MaxRetries uint64
}

var DefaultReadRetry = ReadRetry{Base: 50 * time.Millisecond, MaxRetries: 3}

// withTimeout bounds a single store call.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// readWithRetry runs fn with a per-attempt timeout, retrying transient failures.
func readWithRetry(ctx context.Context, policy ReadRetry, timeout time.Duration, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(policy.MaxRetries, retry.NewExponential(policy.Base))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		callCtx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		if err := fn(callCtx); err != nil {
			if repository.IsTransient(err) && ctx.Err() == nil {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}
