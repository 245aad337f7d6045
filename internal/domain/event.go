package domain

import "time"

type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

// MatchEvent records one scoring decision for one (job, profile) pair at one
// point in time. Events are append-only: a re-score emits a new event and
// never mutates a prior one.
type MatchEvent struct {
	CanonicalJobID  CanonicalJobID `json:"canonical_job_id"`
	ProfileID       string         `json:"profile_id"`
	Score           float64        `json:"score"`
	MatchedKeywords []string       `json:"matched_keywords,omitempty"`
	Decision        Decision       `json:"decision"`
	ComputedAt      time.Time      `json:"computed_at"`
}
