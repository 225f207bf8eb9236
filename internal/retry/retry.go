// SPDX-License-Identifier: MPL-2.0

// Package retry runs operations that may fail transiently, backing off
// exponentially between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// MaxAttempts caps Policy.Attempts.
	MaxAttempts = 10
	// MaxWait caps a single backoff wait.
	MaxWait = 5 * time.Minute
)

// Policy bounds a retry loop.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// are clamped to [1, MaxAttempts].
	Attempts int
	// Backoff is the wait before the second try; it doubles after each failure.
	Backoff time.Duration
}

// WithBackoff calls op until it succeeds, returns retry=false, or the attempt
// budget is spent. The wait between attempts is cut short by ctx. On
// exhaustion the last error is returned unchanged.
func WithBackoff(
	ctx context.Context,
	p Policy,
	op func(attempt int) (retry bool, err error),
) error {
	attempts := min(max(p.Attempts, 1), MaxAttempts)

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			wait := backoff(p.Backoff, attempt)
			slog.Debug("retrying after transient failure", "attempt", attempt+1, "wait", wait, "error", lastErr)
			if err := sleep(ctx, wait); err != nil {
				return fmt.Errorf("retry aborted: %w", err)
			}
		}

		retry, err := op(attempt)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// Transient wraps op so that only errors classified by IsTransient are retried.
func Transient(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	return WithBackoff(ctx, p, func(int) (bool, error) {
		err := op(ctx)
		return IsTransient(err), err
	})
}

// IsTransient reports whether err, or any error it wraps, declares itself
// transient through a Transient() bool method. Cancellation never is.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t interface{ Transient() bool }
	return errors.As(err, &t) && t.Transient()
}

// backoff returns base doubled attempt-1 times, capped at MaxWait.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	wait := base
	for range attempt - 1 {
		if wait >= MaxWait/2 {
			return MaxWait
		}
		wait *= 2
	}
	return min(wait, MaxWait)
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
