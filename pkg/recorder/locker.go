package recorder

import (
	"context"
	"sync"
)

// Locker enforces the "one active run" invariant described in
// SPEC_FULL.md §4.2. Acquire returns ErrAlreadyActive if the lease is
// already held, locally or cluster-wide depending on the implementation.
// Release is idempotent.
type Locker interface {
	Acquire(ctx context.Context, runID string) error
	Release(ctx context.Context, runID string) error
}

// LocalLock is an in-process mutex-backed Locker, sufficient for the
// single-process deployment: at most one goroutine in this process may
// hold the lease for a given runID at a time. It does not coordinate
// across processes or machines; use RedisLock for that.
type LocalLock struct {
	mu     sync.Mutex
	holder string // empty when free
}

// NewLocalLock creates an unheld LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

func (l *LocalLock) Acquire(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return ErrAlreadyActive
	}
	l.holder = runID
	return nil
}

func (l *LocalLock) Release(ctx context.Context, runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
	}
	return nil
}
