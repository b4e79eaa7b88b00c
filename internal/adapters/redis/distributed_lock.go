package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/amyangfei/redlock-go/v3/redlock"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/pkg/logger"
)

// DistributedLock wraps redlock-go to serialize failure-memory writes
// across pods. The Auto-Learn critical section is short, so there is no
// renewal loop: the TTL is the hard upper bound on hold time.
type DistributedLock struct {
	lockManager *redlock.RedLock
	scope       string
	lockName    string
	ttl         time.Duration
	locked      bool
}

// NewDistributedLock creates new distributed lock using redlock-go
func NewDistributedLock(lockManager *redlock.RedLock, scope string) *DistributedLock {
	return &DistributedLock{
		lockManager: lockManager,
		scope:       scope,
		lockName:    fmt.Sprintf("learn:lock:%s", scope),
		ttl:         15 * time.Second,
		locked:      false,
	}
}

// TryAcquire attempts to acquire the exclusive learn lock using the Redlock
// algorithm. Returns true if acquired, false if another pod holds it.
func (dl *DistributedLock) TryAcquire(ctx context.Context) (bool, error) {
	expiry, err := dl.lockManager.Lock(ctx, dl.lockName, dl.ttl)
	if err != nil {
		// Lock not acquired - another pod has it
		logger.Debug("learn lock already held by another pod",
			zap.String("scope", dl.scope),
			zap.String("lock_name", dl.lockName),
		)
		return false, nil
	}

	if expiry <= 0 {
		return false, fmt.Errorf("failed to acquire lock: invalid expiry %v", expiry)
	}

	dl.locked = true

	logger.Debug("learn lock acquired",
		zap.String("scope", dl.scope),
		zap.String("lock_name", dl.lockName),
		zap.Duration("ttl", dl.ttl),
		zap.Duration("expiry", expiry),
	)

	return true, nil
}

// Release releases the Redis distributed lock
func (dl *DistributedLock) Release(ctx context.Context) error {
	if !dl.locked {
		return nil
	}

	err := dl.lockManager.UnLock(ctx, dl.lockName)
	if err != nil {
		logger.Warn("failed to release learn lock (may have already expired)",
			zap.String("scope", dl.scope),
			zap.String("lock_name", dl.lockName),
			zap.Error(err),
		)
		// Lock may have already expired naturally
	} else {
		logger.Debug("learn lock released",
			zap.String("scope", dl.scope),
			zap.String("lock_name", dl.lockName),
		)
	}

	dl.locked = false
	return nil
}

// Scope returns the lock scope key
func (dl *DistributedLock) Scope() string {
	return dl.scope
}
