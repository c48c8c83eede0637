package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how often a provider call is attempted. Attempts are
// capped by MaxAttempts and by MaxElapsed, whichever comes first.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy allows 3 attempts, 500ms apart and doubling, within 5s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     3,
	InitialInterval: 500 * time.Millisecond,
	MaxElapsed:      5 * time.Second,
}

// RetryObserver is told about each retry before it sleeps.
type RetryObserver func(provider string, attempt int, err error)

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = p.MaxElapsed
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// do runs op under the policy. op marks terminal failures with
// backoff.Permanent; those are returned unwrapped without further attempts.
// The last transient error is returned once the policy is exhausted.
func (p RetryPolicy) do(ctx context.Context, provider string, observe RetryObserver, op func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op()
	}, p.backOff(ctx), func(err error, _ time.Duration) {
		if observe != nil {
			observe(provider, attempt, err)
		}
	})
}
