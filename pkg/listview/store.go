package listview

import "sync"

// Ticket orders fetches against a store. Tickets are issued in increasing
// order; a commit is only accepted from a ticket newer than the last one
// committed, so a slow response can never overwrite fresher records.
type Ticket uint64

// Store is the in-memory record collection backing a list view.
type Store[T any] struct {
	mu        sync.RWMutex
	records   []T
	issued    Ticket
	committed Ticket
	loaded    bool
}

// NewStore returns an empty, unloaded store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{}
}

// Begin issues a ticket for a fetch that is about to start.
func (s *Store[T]) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Commit replaces the records when t is newer than the last commit. It
// reports whether the records were applied.
func (s *Store[T]) Commit(t Ticket, records []T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t <= s.committed {
		return false
	}
	s.committed = t
	s.records = append([]T(nil), records...)
	s.loaded = true
	return true
}

// Records returns a copy of the current records.
func (s *Store[T]) Records() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]T(nil), s.records...)
}

// Len returns the number of records held.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Loaded reports whether any fetch has been committed.
func (s *Store[T]) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Generation returns the ticket of the records currently held.
func (s *Store[T]) Generation() Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.committed
}
