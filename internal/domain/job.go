package domain

import "time"

// RawPosting is the envelope a connector hands to the normalizer. Connectors
// fill in whatever their source exposes; only ExternalID and Title are
// guaranteed to matter downstream.
type RawPosting struct {
	ExternalID      string
	Title           string
	Company         string
	Location        string
	URL             string
	DescriptionHTML string
	DescriptionText string
	SalaryText      string // source-provided salary blurb, if any
	Tags            []string
	Remote          bool
	PostedAt        *time.Time
}

// CanonicalJobID groups all source postings judged to be the same role.
type CanonicalJobID string

// JobRecord is the canonical posting shape every source normalizes into.
// (SourceID, ExternalID) is unique per ingestion; Fingerprint is derived from
// normalized content only, so the same role fetched from two boards hashes
// identically.
type JobRecord struct {
	SourceID        string
	ExternalID      string
	Title           string
	Company         string
	Location        string
	WorkMode        string // Remote/Hybrid/Onsite/Unknown
	DescriptionText string
	URL             string
	Tags            []string
	SalaryMin       int // annual, 0 when unknown
	SalaryMax       int
	PostedAt        *time.Time
	Fingerprint     string
}
