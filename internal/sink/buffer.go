package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"jobmatch-engine/internal/domain"
)

// Buffered wraps a sink with a bounded in-memory queue. While the inner sink
// is unavailable, events accumulate up to the capacity; beyond that the
// oldest event is dropped first. Publish itself never returns an error, so a
// dead downstream cannot fail an ingestion run.
type Buffered struct {
	inner Sink
	log   *slog.Logger
	cap   int

	mu      sync.Mutex
	queue   []domain.MatchEvent
	dropped uint64

	wake chan struct{}
}

func NewBuffered(inner Sink, capacity int, log *slog.Logger) *Buffered {
	if capacity <= 0 {
		capacity = 256
	}
	return &Buffered{
		inner: inner,
		log:   log,
		cap:   capacity,
		wake:  make(chan struct{}, 1),
	}
}

func (b *Buffered) Publish(ctx context.Context, ev domain.MatchEvent) error {
	b.mu.Lock()
	queued := len(b.queue)
	b.mu.Unlock()

	// preserve ordering: never bypass events that are already waiting
	if queued == 0 {
		if err := b.inner.Publish(ctx, ev); err == nil {
			return nil
		}
	}
	b.enqueue(ev)
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run drains the queue in the background until ctx is cancelled. A flush
// stops at the first delivery failure and retries on the next tick.
func (b *Buffered) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		case <-ticker.C:
		}
		b.flush(ctx)
	}
}

// Pending reports how many events are waiting on the downstream.
func (b *Buffered) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Dropped reports how many events were lost to the capacity bound.
func (b *Buffered) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *Buffered) enqueue(ev domain.MatchEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) >= b.cap {
		b.queue = b.queue[1:]
		b.dropped++
		if b.dropped%uint64(b.cap) == 1 {
			b.log.Warn("sink buffer full, dropping oldest events", "dropped_total", b.dropped)
		}
	}
	b.queue = append(b.queue, ev)
}

func (b *Buffered) flush(ctx context.Context) {
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.queue[0]
		b.mu.Unlock()

		if err := b.inner.Publish(ctx, ev); err != nil {
			return
		}

		b.mu.Lock()
		// the head may have been dropped while we were publishing
		if len(b.queue) > 0 && b.queue[0].CanonicalJobID == ev.CanonicalJobID &&
			b.queue[0].ProfileID == ev.ProfileID && b.queue[0].ComputedAt.Equal(ev.ComputedAt) {
			b.queue = b.queue[1:]
		}
		b.mu.Unlock()
	}
}
