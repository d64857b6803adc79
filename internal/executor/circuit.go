package executor

import (
	"sync"
	"time"
)

// breaker is a simple sliding-window circuit breaker keyed per agent id:
// three failures inside window opens the breaker. While it is open, the
// executor fails the agent's stages at once without invoking the agent;
// no supervisor stage is scheduled in its place.
type breaker struct {
	mu        sync.Mutex
	fails     []time.Time
	window    time.Duration
	threshold int
}

func newBreaker(window time.Duration, threshold int) *breaker {
	if window <= 0 {
		window = time.Minute
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &breaker{window: window, threshold: threshold}
}

// recordFailure appends a failure timestamp and reports whether the
// breaker is now open.
func (b *breaker) recordFailure(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = append(b.fails, now)
	b.prune(now)
	return len(b.fails) >= b.threshold
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fails = nil
}

func (b *breaker) isOpen(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prune(now)
	return len(b.fails) >= b.threshold
}

func (b *breaker) prune(now time.Time) {
	cutoff := now.Add(-b.window)
	kept := b.fails[:0]
	for _, t := range b.fails {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.fails = kept
}
