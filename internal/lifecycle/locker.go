package lifecycle

import "sync"

// TicketLocker linearizes mutations per ticket id. Concurrent transitions on
// the same ticket must not interleave SLA bookkeeping; different tickets
// proceed in parallel.
type TicketLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewTicketLocker constructs a locker.
func NewTicketLocker() *TicketLocker {
	return &TicketLocker{entries: make(map[string]*lockEntry)}
}

// Lock acquires the lock for a ticket id and returns its release func.
func (l *TicketLocker) Lock(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[ticketID]
	if !ok {
		entry = &lockEntry{}
		l.entries[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, ticketID)
		}
		l.mu.Unlock()
	}
}
