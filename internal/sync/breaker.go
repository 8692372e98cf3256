package sync

import (
	"sync"
	"time"
)

// breaker trips open after a run of consecutive delivery failures so a
// down remote does not burn every queued task's retry budget. After the
// cooldown one probe is let through; its outcome closes or re-opens the
// breaker.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration

	failures int
	open     bool
	openedAt time.Time
	probing  bool
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	return &breaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a delivery may be attempted now.
func (b *breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.probing || now.Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	return true
}

func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.probing = false
}

func (b *breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.probing = false
	if b.failures >= b.threshold {
		b.open = true
		b.openedAt = now
	}
}
