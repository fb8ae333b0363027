// Package sessionlock serializes photo processing per measurement session.
// Two concurrent uploads for the same session would race on the
// read-modify-write of the session row, so the whole analyze step runs
// under a per-session lock: Redis-backed when a Redis address is
// configured, in-process otherwise.
package sessionlock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to a session key. Acquire blocks until
// the lock is held or the context is done, and returns the release
// function for the held lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker serializes within a single process. It is the fallback for
// single-instance deployments and the implementation used in tests.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		l.mu.Lock()
		waiter, taken := l.held[key]
		if !taken {
			done := make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, key)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-waiter:
			// Holder released, race for it again.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
