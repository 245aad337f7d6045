package match

import (
	"sort"
	"strings"
	"time"

	"jobmatch-engine/internal/domain"
)

// Embedder derives a dense vector for a piece of text. It is an external
// numeric capability; the scorer only cares that identical text yields an
// identical vector.
type Embedder interface {
	Embed(text string) ([]float64, error)
}

// Scorer computes match events for (record, profile) pairs. Scoring is
// deterministic: no randomness and no mutable state, so re-scoring the same
// inputs always reproduces the same score.
type Scorer struct {
	// BlendWeight is the share of the embedding similarity when both a
	// keyword score and an embedding score are available.
	BlendWeight float64
	// Embedder may be nil; scoring then degrades to keyword-only.
	Embedder Embedder

	now func() time.Time
}

func NewScorer(blendWeight float64, embedder Embedder) *Scorer {
	return &Scorer{
		BlendWeight: blendWeight,
		Embedder:    embedder,
		now:         time.Now,
	}
}

// Score applies hard filters first, then the keyword/embedding blend.
// MustNotHave and MustHave short-circuit before any embedding work.
func (s *Scorer) Score(rec domain.JobRecord, canonical domain.CanonicalJobID, profile domain.ProfileVector) domain.MatchEvent {
	ev := domain.MatchEvent{
		CanonicalJobID: canonical,
		ProfileID:      profile.ID,
		Decision:       domain.DecisionRejected,
		ComputedAt:     s.now().UTC(),
	}

	tags := map[string]bool{}
	for _, t := range rec.Tags {
		tags[strings.ToLower(t)] = true
	}

	for _, kw := range profile.MustNotHave {
		if tags[strings.ToLower(strings.TrimSpace(kw))] {
			return ev
		}
	}
	for _, kw := range profile.MustHave {
		if !tags[strings.ToLower(strings.TrimSpace(kw))] {
			return ev
		}
	}
	if !geoAllowed(rec, profile.AllowedRegions) {
		return ev
	}
	if !titleAllowed(rec.Title, profile.TitleKeywords) {
		return ev
	}

	sk, matched := keywordScore(tags, profile.Keywords)
	score := sk

	if len(profile.Embedding) > 0 && s.Embedder != nil {
		if vec, err := s.Embedder.Embed(rec.Title + "\n" + rec.DescriptionText); err == nil && len(vec) > 0 {
			se := (Cosine(vec, profile.Embedding) + 1) / 2
			score = s.BlendWeight*se + (1-s.BlendWeight)*sk
		}
		// embedding unavailable: keep the keyword score rather than fail
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	ev.Score = score
	ev.MatchedKeywords = matched
	if score >= profile.MinScore {
		ev.Decision = domain.DecisionAccepted
	}
	return ev
}

// geoAllowed passes remote jobs unconditionally; anything else must carry an
// allowed region marker in its location. Blank entries are ignored, and a
// profile without any usable entry imposes no geo restriction.
func geoAllowed(rec domain.JobRecord, regions []string) bool {
	location := strings.ToLower(rec.Location)
	restricted := false
	for _, r := range regions {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		restricted = true
		if strings.Contains(location, r) {
			return true
		}
	}
	if !restricted {
		return true
	}
	return strings.EqualFold(rec.WorkMode, "Remote")
}

// titleAllowed requires the title to contain one of the keywords, if any
// non-blank keywords are configured.
func titleAllowed(title string, keywords []string) bool {
	lower := strings.ToLower(title)
	restricted := false
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		restricted = true
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return !restricted
}

// keywordScore is the weighted overlap between record tags and profile
// keywords, normalized by the total keyword weight. Keywords are summed in
// sorted order: float addition is not associative, so map iteration order
// would make the score vary between calls on the same inputs.
func keywordScore(tags map[string]bool, keywords map[string]float64) (float64, []string) {
	kws := make([]string, 0, len(keywords))
	for kw := range keywords {
		kws = append(kws, kw)
	}
	sort.Strings(kws)

	var total, hit float64
	var matched []string
	for _, kw := range kws {
		w := keywords[kw]
		if w <= 0 {
			continue
		}
		total += w
		if tags[strings.ToLower(strings.TrimSpace(kw))] {
			hit += w
			matched = append(matched, kw)
		}
	}
	if total == 0 {
		return 0, nil
	}
	return hit / total, matched
}
