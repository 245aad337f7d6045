package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"jobmatch-engine/internal/domain"
)

// AppendMatchEvent writes one scoring decision. Events are append-only: a
// re-score inserts a new row, nothing is ever updated.
func (d *DB) AppendMatchEvent(ctx context.Context, ev domain.MatchEvent) error {
	matched, _ := json.Marshal(ev.MatchedKeywords)
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO match_events (canonical_id, profile_id, score, matched_keywords, decision, computed_at)
VALUES (?, ?, ?, ?, ?, ?);`,
		string(ev.CanonicalJobID), ev.ProfileID, ev.Score, string(matched),
		string(ev.Decision), ev.ComputedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return wrapUnavailable("append match event", err)
	}
	return nil
}

// LatestMatch returns the most recent event for a (job, profile) pair, which
// is what "current status" means over an append-only history.
func (d *DB) LatestMatch(ctx context.Context, canonical domain.CanonicalJobID, profileID string) (domain.MatchEvent, bool, error) {
	row := d.Pool.QueryRowContext(ctx, `
SELECT canonical_id, profile_id, score, matched_keywords, decision, computed_at
FROM match_events
WHERE canonical_id = ? AND profile_id = ?
ORDER BY computed_at DESC, id DESC
LIMIT 1;`, string(canonical), profileID)

	var ev domain.MatchEvent
	var canonicalID, matched, decision, computedAt string
	err := row.Scan(&canonicalID, &ev.ProfileID, &ev.Score, &matched, &decision, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MatchEvent{}, false, nil
	}
	if err != nil {
		return domain.MatchEvent{}, false, wrapUnavailable("latest match", err)
	}

	ev.CanonicalJobID = domain.CanonicalJobID(canonicalID)
	ev.Decision = domain.Decision(decision)
	_ = json.Unmarshal([]byte(matched), &ev.MatchedKeywords)
	if t, err := time.Parse(time.RFC3339Nano, computedAt); err == nil {
		ev.ComputedAt = t
	}
	return ev, true, nil
}

// CountMatchEvents is used by tests and the operational surface to confirm
// the append-only property.
func (d *DB) CountMatchEvents(ctx context.Context, canonical domain.CanonicalJobID, profileID string) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `
SELECT COUNT(*) FROM match_events WHERE canonical_id = ? AND profile_id = ?;`,
		string(canonical), profileID).Scan(&n)
	if err != nil {
		return 0, wrapUnavailable("count match events", err)
	}
	return n, nil
}
