package sink

import (
	"context"
	"errors"

	"jobmatch-engine/internal/domain"
)

// ErrUnavailable means the downstream could not accept the event right now.
// Callers decide whether to buffer, retry, or drop.
var ErrUnavailable = errors.New("sink unavailable")

// Sink delivers match events to a downstream consumer.
type Sink interface {
	Publish(ctx context.Context, ev domain.MatchEvent) error
}

// Multi publishes to every sink and returns the first error. Local fan-out
// sinks never fail, so an error always comes from a real downstream.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev domain.MatchEvent) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
