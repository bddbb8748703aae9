package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// scopeLock is one scope's semaphore together with the number of holders
// and waiters currently referencing it.
type scopeLock struct {
	sem  *semaphore.Weighted
	refs int
}

// scopeLocks serializes group mutations per scope key. Attach locks the
// tenant (the target group is unknown until candidates are compared);
// resolve locks the single group. Acquisition is bounded by maxWait so a
// contended scope surfaces as a retryable error instead of a deadlock.
// Entries are refcounted and evicted once the last holder or waiter lets
// go, keeping the map proportional to in-flight mutations rather than to
// every scope ever touched.
type scopeLocks struct {
	mu      sync.Mutex
	locks   map[string]*scopeLock
	maxWait time.Duration
}

func newScopeLocks(maxWait time.Duration) *scopeLocks {
	return &scopeLocks{
		locks:   map[string]*scopeLock{},
		maxWait: maxWait,
	}
}

// acquire blocks until the scope is free, the wait bound elapses, or the
// caller's context is cancelled. On success it returns a release func,
// which must be called exactly once.
func (l *scopeLocks) acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &scopeLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := entry.sem.Acquire(waitCtx, 1); err != nil {
		l.drop(key, entry)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: scope %s busy", ErrGroupContention, key)
	}
	return func() {
		entry.sem.Release(1)
		l.drop(key, entry)
	}, nil
}

// drop releases one reference and evicts the entry when nobody holds or
// waits on it anymore. Waiters hold a reference of their own, so an entry
// in use is never replaced by a fresh semaphore under the same key.
func (l *scopeLocks) drop(key string, entry *scopeLock) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

func tenantScope(tenantID string) string { return "tenant/" + tenantID }
func groupScope(groupID string) string   { return "group/" + groupID }
