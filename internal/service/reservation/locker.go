package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightmanager/internal/domain"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/google/uuid"
)

// Locker serializes admissions on one flight. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, flightID int64) (func(), error)
}

type AdmissionLockCache interface {
	AcquireAdmissionLock(ctx context.Context, flightID int64, owner string, ttl time.Duration) (bool, error)
	ReleaseAdmissionLock(ctx context.Context, flightID int64, owner string) error
}

type RedisLocker struct {
	cache AdmissionLockCache
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

func NewRedisLocker(cache AdmissionLockCache, ttl time.Duration) *RedisLocker {
	return &RedisLocker{cache: cache, ttl: ttl, wait: ttl, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, flightID int64) (func(), error) {
	owner := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.cache.AcquireAdmissionLock(ctx, flightID, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire admission lock for flight %d: %w", flightID, err)
		}
		if ok {
			return func() {
				// The caller's context may already be cancelled.
				if err := l.cache.ReleaseAdmissionLock(context.WithoutCancel(ctx), flightID, owner); err != nil {
					logger.WarnContext(ctx, "failed to release admission lock", "flight_id", flightID, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("flight %d is busy: %w", flightID, domain.ErrConflict)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

type noLock struct{}

func (noLock) Lock(context.Context, int64) (func(), error) {
	return func() {}, nil
}
