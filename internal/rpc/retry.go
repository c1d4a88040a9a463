package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

// Policy configures Retry.
type Policy struct {
	// MaxAttempts bounds the total number of calls, including the first.
	MaxAttempts uint
	// BaseDelay is the wait before the second attempt; each later wait doubles.
	BaseDelay time.Duration
	// Retryable selects the failures worth another attempt. Defaults to IsTransient.
	Retryable func(error) bool
	// NewBackOff overrides the exponential schedule, mostly for tests.
	NewBackOff func() backoff.BackOff
}

// DefaultPolicy retries transient failures 3 times in total, waiting 1s then 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Retryable:   IsTransient,
	}
}

func (p Policy) attempts() uint {
	if p.MaxAttempts == 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return IsTransient(err)
	}
	return p.Retryable(err)
}

// backOff yields base * 2^(attempt-1) without jitter.
func (p Policy) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseDelay << p.attempts()
	b.Reset()
	return b
}

// Retry calls fn until it succeeds, returns an error the policy does not retry, or the
// attempt bound is reached. The last error is returned unchanged; notify (optional) is
// called before every wait.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error), notify func(error, time.Duration)) (T, error) {
	operation := func() (T, error) {
		res, err := fn(ctx)
		if err != nil && !p.retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(p.attempts()),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(notify))
	}

	res, err := backoff.Retry(ctx, operation, opts...)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return res, permanent.Err
		}
		return res, err
	}
	return res, nil
}
