package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is an exponential schedule without jitter. Attempts counts the first try.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
}

// DefaultRetryPolicy waits 3s, 4.5s and 6.75s between four attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        4,
		InitialInterval: 3 * time.Second,
		Multiplier:      1.5,
		MaxInterval:     15 * time.Second,
	}
}

// Permanent marks err as not worth retrying, e.g. a payload that cannot be decoded.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.Multiplier = p.Multiplier
	eb.MaxInterval = p.MaxInterval
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0

	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)
}

// Do runs op until it succeeds, returns a Permanent error, the attempts run out or ctx ends.
// The last error is returned with any Permanent wrapper removed.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, p.backOff(ctx))
}
