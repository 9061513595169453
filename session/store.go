package session

import (
	"errors"
	"sync"
)

var (
	// ErrBusy is returned when the same action is already in flight
	ErrBusy = errors.New("action already in progress")
	// ErrClosed is returned once the session has been unmounted
	ErrClosed = errors.New("session is closed")
	// ErrJobRemoved is returned when a watched job no longer exists on the backend
	ErrJobRemoved = errors.New("download no longer exists on the backend")
)

// Store owns the current Snapshot. Dispatch is the only writer; once closed,
// dispatched events are discarded so late results never reach a torn-down view.
type Store struct {
	mu      sync.Mutex
	state   Snapshot
	closed  bool
	subs    map[int]chan Snapshot
	nextSub int
}

// NewStore creates a store holding initial
func NewStore(initial Snapshot) *Store {
	return &Store{
		state: initial,
		subs:  make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies e and publishes the result. It returns false when the store is closed.
func (s *Store) Dispatch(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	s.state = Reduce(s.state, e)
	for _, ch := range s.subs {
		publishLatest(ch, s.state)
	}
	return true
}

// Subscribe returns a channel that always holds the most recent snapshot not
// yet received. Intermediate snapshots may be skipped. The channel is closed
// by cancel or Close.
func (s *Store) Subscribe() (updates <-chan Snapshot, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// Close stops accepting events and closes every subscription
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Closed reports whether Close was called
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// publishLatest replaces any unread snapshot in ch; callers hold the store lock
func publishLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
