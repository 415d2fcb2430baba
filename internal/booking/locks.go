package booking

import "sync"

// SpaceLocks hands out one mutex per space so that a conflict check
// and the write behind it run as a unit for that space, while work on
// different spaces proceeds in parallel. The booking engine and the
// incident cascade share one registry; a space block and a create on
// the same space serialize through the same mutex. Entries are never
// removed; the registry is bounded by the campus space inventory.
type SpaceLocks struct {
	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewSpaceLocks returns an empty registry.
func NewSpaceLocks() *SpaceLocks {
	return &SpaceLocks{locks: make(map[uint64]*sync.Mutex)}
}

// Get returns the mutex for a space, creating it on first use.
func (l *SpaceLocks) Get(spaceID uint64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[spaceID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[spaceID] = m
	}
	return m
}
