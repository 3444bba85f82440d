package faults

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/webnovel-tools/enhancer/internal/gateway"
)

// RetryPolicy wraps an operation in bounded retries with exponential
// backoff. Only errors in recoverable categories are retried.
type RetryPolicy struct {
	Attempts  uint
	BaseDelay time.Duration
	MaxJitter time.Duration
}

// DefaultRetryPolicy matches the enhancement pipeline defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxJitter: 250 * time.Millisecond,
	}
}

// Retryable reports whether err belongs to a category worth retrying.
// User termination and context cancellation are never retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gateway.ErrTerminated) || errors.Is(err, context.Canceled) {
		return false
	}
	return Define(Classify(err)).Recoverable
}

// Do runs op with the policy, honoring ctx cancellation between
// attempts. The last error is returned unwrapped from the attempt list.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	return retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.MaxJitter(p.MaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(Retryable),
		retry.LastErrorOnly(true),
	)
}
