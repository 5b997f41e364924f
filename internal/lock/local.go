// Package lock provides per-key mutual exclusion for order mutations.
//
// Local serialises callers inside one process. Redis extends the guarantee
// across replicas that share a Redis server.
package lock

import (
	"context"
	"sync"
)

// Local is an in-process keyed mutex. Keys with no holders or waiters are
// forgotten, so memory stays proportional to active keys.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocal creates an empty Local locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

// WithLock runs fn while holding the lock for key. It returns ctx.Err() if the
// context is done before the lock is acquired.
func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e := l.acquireRef(key)
	defer l.releaseRef(key, e)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.sem }()

	return fn(ctx)
}

func (l *Local) acquireRef(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Local) releaseRef(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// size returns the number of tracked keys.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
