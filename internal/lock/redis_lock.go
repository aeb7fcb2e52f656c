package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prudhivi99/Distributed-Systems/shopsaga-go/internal/apperror"
)

var (
	// ErrLockTimeout means the lock was still held by someone else when the wait time ran out.
	ErrLockTimeout = apperror.Conflict("timed out acquiring lock")
	// ErrLockNotHeld is returned by Unlock when the lease no longer owns its key,
	// including when it expired and another holder took over.
	ErrLockNotHeld = errors.New("lock not held")
)

const (
	DefaultWaitTime  = 5 * time.Second
	DefaultLeaseTime = 10 * time.Second
	DefaultPrefix    = "lock:"

	retryInterval = 50 * time.Millisecond
)

// unlockScript deletes the key only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is what guarded code depends on.
type Locker interface {
	// TryLock returns a nil Lease and a nil error when wait elapses without acquiring key.
	TryLock(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error)
	Unlock(ctx context.Context, l *Lease) error
}

// Lease is one acquisition of a key. Only the Lease that acquired a key can release it.
type Lease struct {
	Key   string
	token string
}

// Manager hands out leased locks stored in Redis with SET NX PX.
type Manager struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewManager(client redis.UniversalClient, prefix string, logger *zap.Logger) *Manager {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Manager{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

// Key builds "<prefix><parts...>" joined by colons, e.g. Key("product", "add", name).
func (m *Manager) Key(parts ...string) string {
	key := m.prefix
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}

// TryLock polls for up to wait to acquire a lease of lease on key.
// It returns nil, nil when the wait elapses and ctx.Err() when ctx ends first.
func (m *Manager) TryLock(ctx context.Context, key string, wait, lease time.Duration) (*Lease, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := m.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			m.logger.Debug("🔒 Lock acquired", zap.String("key", key), zap.Duration("lease", lease))
			return &Lease{Key: key, token: token}, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			m.logger.Warn("⚠️ Lock wait timed out", zap.String("key", key), zap.Duration("wait", wait))
			return nil, nil
		}

		timer := time.NewTimer(min(retryInterval, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Unlock releases l if its key still carries l's token.
func (m *Manager) Unlock(ctx context.Context, l *Lease) error {
	if l == nil || l.token == "" {
		return ErrLockNotHeld
	}

	deleted, err := unlockScript.Run(ctx, m.client, []string{l.Key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.Key, err)
	}
	if deleted == 0 {
		m.logger.Warn("⚠️ Lock lease expired before release", zap.String("key", l.Key))
		return ErrLockNotHeld
	}

	m.logger.Debug("🔓 Lock released", zap.String("key", l.Key))
	return nil
}

// WithLock acquires key, runs fn and releases the lock on every exit path, panics included.
func WithLock(ctx context.Context, locker Locker, key string, wait, lease time.Duration, fn func(ctx context.Context) error) error {
	held, err := locker.TryLock(ctx, key, wait, lease)
	if err != nil {
		return err
	}
	if held == nil {
		return fmt.Errorf("%s: %w", key, ErrLockTimeout)
	}

	defer func() {
		// The caller's ctx may already be canceled; the release must still go out.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = locker.Unlock(releaseCtx, held)
	}()

	return fn(ctx)
}
