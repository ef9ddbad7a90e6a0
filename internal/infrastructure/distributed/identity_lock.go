package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/pkg/distributed"

	"github.com/redis/go-redis/v9"
)

// RedisIdentityLocker serialises provisioning per identity across all
// instances sharing the Redis deployment.
type RedisIdentityLocker struct {
	locks   *distributed.LockManager
	ttl     time.Duration
	timeout time.Duration
}

func NewRedisIdentityLocker(client redis.UniversalClient, prefix string, ttl, timeout time.Duration) *RedisIdentityLocker {
	return &RedisIdentityLocker{
		locks:   distributed.NewLockManager(client, prefix+"lock:provision:"),
		ttl:     ttl,
		timeout: timeout,
	}
}

func (l *RedisIdentityLocker) Acquire(ctx context.Context, identity domain.BroadcasterID) (ports.Lease, error) {
	lock := l.locks.NewLock(string(identity), l.ttl)
	if err := lock.LockWithTimeout(ctx, l.timeout); err != nil {
		if errors.Is(err, distributed.ErrLockTimeout) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, identity)
		}
		return nil, err
	}
	return redisLease{lock: lock}, nil
}

type redisLease struct {
	lock *distributed.DistributedLock
}

func (l redisLease) Release(ctx context.Context) error {
	return l.lock.Unlock(ctx)
}

// MemoryIdentityLocker is the single-instance equivalent of
// RedisIdentityLocker. Leases are never renewed and expire after ttl even
// while the holder is still working, so ttl must exceed the worst-case
// provision time (config validation requires more than twice
// livekit.request_timeout).
type MemoryIdentityLocker struct {
	mu      sync.Mutex
	held    map[domain.BroadcasterID]*memoryLease
	ttl     time.Duration
	timeout time.Duration
}

type memoryLease struct {
	locker    *MemoryIdentityLocker
	identity  domain.BroadcasterID
	expiresAt time.Time
	released  chan struct{}
	once      sync.Once
}

func NewMemoryIdentityLocker(ttl, timeout time.Duration) *MemoryIdentityLocker {
	return &MemoryIdentityLocker{
		held:    make(map[domain.BroadcasterID]*memoryLease),
		ttl:     ttl,
		timeout: timeout,
	}
}

func (l *MemoryIdentityLocker) Acquire(ctx context.Context, identity domain.BroadcasterID) (ports.Lease, error) {
	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		current, busy := l.held[identity]
		now := time.Now()
		if !busy || now.After(current.expiresAt) {
			lease := &memoryLease{
				locker:    l,
				identity:  identity,
				expiresAt: now.Add(l.ttl),
				released:  make(chan struct{}),
			}
			l.held[identity] = lease
			l.mu.Unlock()
			return lease, nil
		}
		wait := time.Until(current.expiresAt)
		l.mu.Unlock()

		expiry := time.NewTimer(wait)
		select {
		case <-current.released:
		case <-expiry.C:
		case <-deadline.C:
			expiry.Stop()
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, identity)
		case <-ctx.Done():
			expiry.Stop()
			return nil, ctx.Err()
		}
		expiry.Stop()
	}
}

func (le *memoryLease) Release(ctx context.Context) error {
	released := false
	le.once.Do(func() {
		le.locker.mu.Lock()
		if le.locker.held[le.identity] == le {
			delete(le.locker.held, le.identity)
			released = true
		}
		le.locker.mu.Unlock()
		close(le.released)
	})
	if !released {
		return distributed.ErrLockNotHeld
	}
	return nil
}
