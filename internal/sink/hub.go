package sink

import (
	"context"
	"sync"

	"jobmatch-engine/internal/domain"
)

// Hub fans match events out to in-process subscribers. Slow subscribers
// lose events rather than stalling the pipeline.
type Hub struct {
	mu      sync.Mutex
	clients map[chan domain.MatchEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan domain.MatchEvent]struct{})}
}

func (h *Hub) Subscribe() chan domain.MatchEvent {
	ch := make(chan domain.MatchEvent, 10)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan domain.MatchEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// Publish never fails; it implements Sink so the hub can sit in a Multi.
func (h *Hub) Publish(_ context.Context, ev domain.MatchEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// drop if slow
		}
	}
	return nil
}
