package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a Do call's retry behavior.
type Policy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxDelay        time.Duration // total wall-clock budget across all attempts
}

// DefaultPolicy returns sensible bounds for an upstream cloud API call.
func DefaultPolicy() Policy {
	return Policy{
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxDelay:        2 * time.Minute,
	}
}

// Do retries fn using exponential backoff while Classify(err) reports
// Retryable, honoring ctx cancellation before every sleep and before every
// attempt. A Terminal classification stops retrying immediately.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = policy.MaxDelay

	bctx := backoff.WithContext(b, ctx)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if Classify(err) == Terminal {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, bctx)
}
