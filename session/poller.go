package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"mediafetch/internal"
	"mediafetch/metrics"
)

// DefaultPollInterval is the period between two poll ticks
const DefaultPollInterval = 5 * time.Second

// Poller re-fetches the job list and stats on a fixed period while started.
// A failed tick is logged and the next tick proceeds as scheduled.
type Poller struct {
	backend  Backend
	store    *Store
	interval time.Duration
	metrics  *metrics.Collector

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller
func NewPoller(backend Backend, store *Store, interval time.Duration, m *metrics.Collector) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		backend:  backend,
		store:    store,
		interval: interval,
		metrics:  m,
	}
}

// Start runs one tick immediately and then one per interval until ctx is
// cancelled or Stop is called. Starting a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
}

// Stop cancels the loop and returns once it has exited. No request is issued after Stop returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a tick that raced with cancellation must not issue requests
			if ctx.Err() != nil {
				return
			}
			p.Tick(ctx)
		}
	}
}

// Tick performs one refresh of jobs and stats and dispatches whatever succeeded
func (p *Poller) Tick(ctx context.Context) error {
	jobs, jobsErr := p.backend.ListJobs(ctx, internal.ListOptions{})
	stats, statsErr := p.backend.Stats(ctx)

	if ctx.Err() != nil {
		return ctx.Err()
	}

	err := errors.Join(jobsErr, statsErr)
	p.metrics.ObservePoll(err)
	if jobsErr != nil {
		internal.LogWarn("Poll: %s", internal.UserMessage("list downloads", jobsErr))
		jobs = nil
	}
	if statsErr != nil {
		internal.LogWarn("Poll: %s", internal.UserMessage("fetch stats", statsErr))
		stats = nil
	}

	if jobsErr == nil {
		if jobs == nil {
			jobs = []internal.Job{}
		}
		p.metrics.SetJobs(countByStatus(jobs))
	}
	p.store.Dispatch(PollTicked{Jobs: jobs, Stats: stats})
	return err
}

func countByStatus(jobs []internal.Job) map[string]int {
	counts := make(map[string]int)
	for _, job := range jobs {
		counts[string(job.Status)]++
	}
	return counts
}
