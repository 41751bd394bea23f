package helpers

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy describes a fixed-interval retry loop. ARM deletes and AAD
// propagation are eventually consistent; a flat interval matches how long
// those backends actually take far better than exponential backoff does.
type RetryPolicy struct {
	Attempts int
	Interval time.Duration
}

// DefaultRetryPolicy suits role-assignment and resource-group teardown waits.
var DefaultRetryPolicy = RetryPolicy{Attempts: 6, Interval: 10 * time.Second}

// Retry runs fn until it succeeds, the attempts are exhausted, or the context
// is done. The last error is returned wrapped with the attempt count.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt == policy.Attempts {
			break
		}

		select {
		case <-time.After(policy.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("after %d attempts: %w", policy.Attempts, lastErr)
}
