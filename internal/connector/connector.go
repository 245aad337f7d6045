package connector

import (
	"context"

	"jobmatch-engine/internal/domain"
)

// Connector is the source capability: one instance per configured source,
// selected by its ID at dispatch time. Fetch returns the full batch of raw
// postings currently visible at the source, or a *Error describing why the
// source is unusable for this run.
type Connector interface {
	ID() string
	Kind() string
	Fetch(ctx context.Context) ([]domain.RawPosting, error)
}
