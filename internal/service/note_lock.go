package service

import "sync"

// noteLocks hands out one mutex per note id. Entries are removed when no
// goroutine holds or waits on them.
type noteLocks struct {
	mu    sync.Mutex
	locks map[string]*noteLock
}

type noteLock struct {
	sync.Mutex
	refs int
}

func newNoteLocks() *noteLocks {
	return &noteLocks{locks: make(map[string]*noteLock)}
}

// Lock blocks until the caller holds the lock for noteID and returns the
// matching unlock func.
func (l *noteLocks) Lock(noteID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[noteID]
	if !ok {
		lock = &noteLock{}
		l.locks[noteID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()

	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, noteID)
		}
		l.mu.Unlock()
	}
}

func (l *noteLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
