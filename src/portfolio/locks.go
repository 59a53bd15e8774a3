package portfolio

import (
	"context"
	"sync"
)

// userLocks serializes mutations per user (and therefore per portfolio).
// Entries are reference counted and dropped once nobody holds or waits on them.
type userLocks struct {
	mu      sync.Mutex
	entries map[uint]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{entries: make(map[uint]*lockEntry)}
}

// acquire blocks until the lock for userID is held or ctx is done.
func (l *userLocks) acquire(ctx context.Context, userID uint) (release func(), err error) {
	l.mu.Lock()
	e, ok := l.entries[userID]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.drop(userID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.drop(userID, e)
		})
	}, nil
}

func (l *userLocks) drop(userID uint, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, userID)
	}
	l.mu.Unlock()
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
