package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/normalize"
)

// Fingerprint hashes the normalized (title, company, location, day) of a
// record. PostedAt is rounded to the UTC day so two boards re-publishing the
// same posting with slightly skewed timestamps still collide. Source fields
// are deliberately excluded: the hash identifies the role, not the posting.
func Fingerprint(rec domain.JobRecord) string {
	day := ""
	if rec.PostedAt != nil {
		day = rec.PostedAt.UTC().Format("2006-01-02")
	}

	h := sha256.New()
	for _, part := range []string{
		strings.ToLower(normalize.CleanText(rec.Title)),
		strings.ToLower(normalize.CleanText(rec.Company)),
		strings.ToLower(normalize.CleanText(rec.Location)),
		day,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
