package redis

import (
	"context"

	"github.com/amyangfei/redlock-go/v3/redlock"
)

// LockFactory creates distributed learn locks.
type LockFactory interface {
	CreateLearnLock(scope string) LearnLock
}

// RedisLockFactory creates Redis-based distributed locks
type RedisLockFactory struct {
	lockManager *redlock.RedLock
}

// NewRedisLockFactory creates new Redis lock factory
func NewRedisLockFactory(lockManager *redlock.RedLock) *RedisLockFactory {
	return &RedisLockFactory{
		lockManager: lockManager,
	}
}

// CreateLearnLock creates a distributed lock for the given scope
func (f *RedisLockFactory) CreateLearnLock(scope string) LearnLock {
	return NewDistributedLock(f.lockManager, scope)
}

// MockLockFactory for testing (always succeeds)
type MockLockFactory struct{}

// NewMockLockFactory creates mock lock factory for tests
func NewMockLockFactory() *MockLockFactory {
	return &MockLockFactory{}
}

// CreateLearnLock creates a mock lock that always succeeds
func (f *MockLockFactory) CreateLearnLock(scope string) LearnLock {
	return &MockLock{scope: scope}
}

// MockLock is a no-op lock for testing
type MockLock struct {
	scope string
}

func (l *MockLock) TryAcquire(ctx context.Context) (bool, error) {
	return true, nil
}

func (l *MockLock) Release(ctx context.Context) error {
	return nil
}

func (l *MockLock) Scope() string {
	return l.scope
}
