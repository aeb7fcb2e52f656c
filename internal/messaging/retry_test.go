package messaging_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/messaging"
)

func TestRetryPolicy_StopsAfterAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := fastRetry.Do(context.Background(), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestRetryPolicy_ZeroAttemptsStillTriesOnce(t *testing.T) {
	calls := 0
	_ = messaging.RetryPolicy{}.Do(context.Background(), func() error {
		calls++
		return errors.New("nope")
	})
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_PermanentIsUnwrapped(t *testing.T) {
	cause := errors.New("bad payload")
	calls := 0
	err := fastRetry.Do(context.Background(), func() error {
		calls++
		return messaging.Permanent(cause)
	})
	assert.Equal(t, 1, calls)
	assert.Same(t, cause, err)
	assert.False(t, messaging.IsPermanent(err))
	assert.True(t, messaging.IsPermanent(messaging.Permanent(cause)))
	assert.Nil(t, messaging.Permanent(nil))
}

func TestRetryPolicy_ContextCancelStopsWaiting(t *testing.T) {
	slow := messaging.RetryPolicy{Attempts: 10, InitialInterval: time.Hour, Multiplier: 1.5, MaxInterval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	err := slow.Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("temporary")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := messaging.DefaultRetryPolicy()
	assert.Equal(t, 4, p.Attempts)
	assert.Equal(t, 3*time.Second, p.InitialInterval)
	assert.Equal(t, 1.5, p.Multiplier)
	assert.Equal(t, 15*time.Second, p.MaxInterval)
}

func TestClassifyError(t *testing.T) {
	cases := map[string]messaging.ErrorCategory{
		"":                                      messaging.ErrorUnknown,
		"JSON deserialization failed":           messaging.ErrorSerialization,
		"Serialization error on field x":        messaging.ErrorSerialization,
		"database is locked":                    messaging.ErrorDownstreamDependency,
		"connection reset by peer":              messaging.ErrorDownstreamDependency,
		"inventory-service unavailable":         messaging.ErrorDownstreamDependency,
		"context deadline exceeded":             messaging.ErrorTimeout,
		"read Timeout":                          messaging.ErrorTimeout,
		"validation failed: quantity":           messaging.ErrorValidation,
		"violates check constraint":             messaging.ErrorValidation,
		"insufficient stock":                    messaging.ErrorBusinessLogic,
		"database timeout during serialization": messaging.ErrorSerialization,
	}
	for text, want := range cases {
		assert.Equal(t, want, messaging.ClassifyError(text), text)
	}
}
