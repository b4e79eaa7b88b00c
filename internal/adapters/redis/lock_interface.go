package redis

import "context"

// LearnLock defines interface for the distributed learn lock guarding
// failure-memory writes. This allows swapping implementations (Redis,
// PostgreSQL advisory locks, etc.)
type LearnLock interface {
	// TryAcquire attempts to acquire the exclusive learn lock
	// Returns true if lock was acquired, false if already locked
	TryAcquire(ctx context.Context) (bool, error)

	// Release releases the lock
	Release(ctx context.Context) error

	// Scope returns the lock scope key
	Scope() string
}
