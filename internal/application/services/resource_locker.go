package services

import (
	"sync"
)

// ResourceLocker serializes in-process work per (tenant, resource) pair.
// It complements the database advisory lock: the store guarantees the
// no-overlap invariant, the locker keeps concurrent requests in one
// process from racing through validation together.
type ResourceLocker struct {
	mu    sync.Mutex
	locks map[string]*resourceLock
}

type resourceLock struct {
	mu   sync.Mutex
	refs int
}

// NewResourceLocker creates a resource locker
func NewResourceLocker() *ResourceLocker {
	return &ResourceLocker{
		locks: make(map[string]*resourceLock),
	}
}

// Lock acquires the mutex for the resource and returns its release
// function. Lock entries are reference counted and removed once idle.
func (l *ResourceLocker) Lock(tenantID, resourceID string) func() {
	key := tenantID + ":" + resourceID

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &resourceLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}
