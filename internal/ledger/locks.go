package ledger

import "sync"

// ownerLocks hands out one mutex per owner id. Entries are dropped once no
// goroutine holds or waits on them.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*ownerLock)}
}

// Lock blocks until the owner's lock is held and returns its release func.
func (l *ownerLocks) Lock(ownerID string) (unlock func()) {
	l.mu.Lock()
	ol, ok := l.locks[ownerID]
	if !ok {
		ol = &ownerLock{}
		l.locks[ownerID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, ownerID)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
