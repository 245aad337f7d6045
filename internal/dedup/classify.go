package dedup

import (
	"context"

	"github.com/google/uuid"

	"jobmatch-engine/internal/domain"
)

type Decision string

const (
	DecisionNew       Decision = "new"
	DecisionUpdate    Decision = "update"
	DecisionDuplicate Decision = "duplicate"
)

// Result is the classifier's verdict for one record. CanonicalID is always
// set: minted fresh for New, resolved from the store otherwise.
type Result struct {
	Decision    Decision
	CanonicalID domain.CanonicalJobID
}

// Lookup is the slice of the persistence capability the classifier needs.
// An empty canonical id means the fingerprint has never been seen.
type Lookup interface {
	LookupFingerprint(ctx context.Context, fingerprint string) (domain.CanonicalJobID, []string, error)
}

type Classifier struct {
	lookup Lookup
}

func NewClassifier(lookup Lookup) *Classifier {
	return &Classifier{lookup: lookup}
}

// Classify decides whether a record is new, a content refresh from a source
// we already track, or a cross-post of a known role.
//
// Two genuinely distinct roles sharing title/company/location/day will merge
// here; that coarse false-merge is an accepted tradeoff of the fingerprint
// design.
func (c *Classifier) Classify(ctx context.Context, rec domain.JobRecord) (Result, error) {
	canonical, sources, err := c.lookup.LookupFingerprint(ctx, rec.Fingerprint)
	if err != nil {
		return Result{}, err
	}

	if canonical == "" {
		return Result{
			Decision:    DecisionNew,
			CanonicalID: domain.CanonicalJobID(uuid.NewString()),
		}, nil
	}

	for _, src := range sources {
		if src == rec.SourceID {
			return Result{Decision: DecisionUpdate, CanonicalID: canonical}, nil
		}
	}
	return Result{Decision: DecisionDuplicate, CanonicalID: canonical}, nil
}
