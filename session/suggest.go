package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"mediafetch/internal"
)

const (
	// DefaultSuggestDebounce is the delay after the last keystroke before suggestions are fetched
	DefaultSuggestDebounce = 300 * time.Millisecond
	// MinSuggestQuery is the shortest query, in characters, that is sent
	MinSuggestQuery = 2
)

// Suggester debounces suggestion fetches. Each Update supersedes the previous
// one; a result that returns after being superseded is dropped.
type Suggester struct {
	backend Backend
	store   *Store
	delay   time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	stopped    bool
	inflight   sync.WaitGroup
}

// NewSuggester creates a suggester dispatching SuggestionsLoaded into store
func NewSuggester(backend Backend, store *Store, delay time.Duration) *Suggester {
	if delay < 0 {
		delay = DefaultSuggestDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Suggester{
		backend: backend,
		store:   store,
		delay:   delay,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Update schedules a fetch for query, cancelling any pending one. Queries
// shorter than MinSuggestQuery characters schedule nothing.
func (s *Suggester) Update(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	query = strings.TrimSpace(query)
	if len([]rune(query)) < MinSuggestQuery {
		return
	}

	gen := s.generation
	s.timer = time.AfterFunc(s.delay, func() { s.fetch(gen, query) })
}

func (s *Suggester) fetch(gen uint64, query string) {
	s.mu.Lock()
	if s.stopped || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	suggestions, err := s.backend.CosplaySuggestions(s.ctx, query)
	if err != nil {
		internal.LogDebug("Suggestions for %q failed: %v", query, err)
		return
	}

	s.mu.Lock()
	current := !s.stopped && gen == s.generation
	s.mu.Unlock()
	if !current {
		return
	}
	s.store.Dispatch(SuggestionsLoaded{Query: query, Suggestions: suggestions})
}

// Stop cancels the pending timer and any in-flight fetch and waits for it to return
func (s *Suggester) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.inflight.Wait()
}
