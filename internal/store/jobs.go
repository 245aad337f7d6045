package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobmatch-engine/internal/domain"
)

// CanonicalJob is a deduplicated job as persisted, independent of any single
// source posting.
type CanonicalJob struct {
	ID          domain.CanonicalJobID
	Fingerprint string
	Title       string
	Company     string
	Location    string
	WorkMode    string
	Description string
	URL         string
	Tags        []string
	SalaryMin   int
	SalaryMax   int
	PostedAt    *time.Time
}

// LookupFingerprint resolves a fingerprint to its canonical id plus the
// source ids already linked to it. An empty id means the fingerprint is
// unseen.
func (d *DB) LookupFingerprint(ctx context.Context, fingerprint string) (domain.CanonicalJobID, []string, error) {
	var id string
	err := d.Pool.QueryRowContext(ctx,
		`SELECT id FROM canonical_jobs WHERE fingerprint = ?;`, fingerprint).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, wrapUnavailable("lookup fingerprint", err)
	}

	rows, err := d.Pool.QueryContext(ctx,
		`SELECT source_id FROM job_sources WHERE canonical_id = ?;`, id)
	if err != nil {
		return "", nil, wrapUnavailable("lookup fingerprint sources", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", nil, wrapUnavailable("scan source", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return "", nil, wrapUnavailable("iterate sources", err)
	}
	return domain.CanonicalJobID(id), sources, nil
}

// UpsertJob persists a record under the given canonical id and links the
// (source, external) posting to it. Content fields prefer the most recently
// fetched version. Returns ErrConflict if the fingerprint meanwhile resolved
// to a different canonical id (two sources racing on the same role).
func (d *DB) UpsertJob(ctx context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error {
	now := time.Now().UTC().Format(time.RFC3339)
	tagsJSON, _ := json.Marshal(rec.Tags)
	postedAt := sql.NullString{}
	if rec.PostedAt != nil {
		postedAt = sql.NullString{String: rec.PostedAt.UTC().Format(time.RFC3339), Valid: true}
	}

	tx, err := d.Pool.BeginTx(ctx, nil)
	if err != nil {
		return wrapUnavailable("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO canonical_jobs (id, fingerprint, title, company, location, work_mode, description, url, tags, salary_min, salary_max, posted_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
  title = excluded.title,
  company = excluded.company,
  location = excluded.location,
  work_mode = excluded.work_mode,
  description = excluded.description,
  url = excluded.url,
  tags = excluded.tags,
  salary_min = excluded.salary_min,
  salary_max = excluded.salary_max,
  posted_at = COALESCE(excluded.posted_at, canonical_jobs.posted_at),
  updated_at = excluded.updated_at;`,
		string(canonical), rec.Fingerprint, rec.Title, rec.Company, rec.Location,
		rec.WorkMode, rec.DescriptionText, rec.URL, string(tagsJSON),
		rec.SalaryMin, rec.SalaryMax, postedAt, now, now,
	)
	if err != nil {
		return wrapUnavailable("upsert canonical job", err)
	}

	// the fingerprint, not the id, is the conflict key above; verify which
	// canonical id actually owns it now
	var ownerID string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM canonical_jobs WHERE fingerprint = ?;`, rec.Fingerprint).Scan(&ownerID); err != nil {
		return wrapUnavailable("verify canonical owner", err)
	}
	if ownerID != string(canonical) {
		return fmt.Errorf("upsert job: canonical id %s lost fingerprint race to %s: %w", canonical, ownerID, ErrConflict)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO job_sources (canonical_id, source_id, external_id, url, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, external_id) DO UPDATE SET
  canonical_id = excluded.canonical_id,
  url = excluded.url,
  last_seen = excluded.last_seen;`,
		string(canonical), rec.SourceID, rec.ExternalID, rec.URL, now, now,
	)
	if err != nil {
		return wrapUnavailable("link job source", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapUnavailable("commit upsert", err)
	}
	return nil
}

// LinkDuplicate records that a source posting is a cross-post of an existing
// canonical job without touching the canonical content.
func (d *DB) LinkDuplicate(ctx context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO job_sources (canonical_id, source_id, external_id, url, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id, external_id) DO UPDATE SET
  last_seen = excluded.last_seen;`,
		string(canonical), rec.SourceID, rec.ExternalID, rec.URL, now, now,
	)
	if err != nil {
		return wrapUnavailable("link duplicate", err)
	}
	return nil
}

// ListCanonicalJobs returns persisted canonical jobs, newest first, for
// profile re-scoring.
func (d *DB) ListCanonicalJobs(ctx context.Context, limit int) ([]CanonicalJob, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, fingerprint, title, company, location, work_mode, description, url, tags, salary_min, salary_max, posted_at
FROM canonical_jobs
ORDER BY updated_at DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, wrapUnavailable("list canonical jobs", err)
	}
	defer rows.Close()

	var out []CanonicalJob
	for rows.Next() {
		var job CanonicalJob
		var id, tagsJSON string
		var postedAt sql.NullString
		if err := rows.Scan(&id, &job.Fingerprint, &job.Title, &job.Company, &job.Location,
			&job.WorkMode, &job.Description, &job.URL, &tagsJSON,
			&job.SalaryMin, &job.SalaryMax, &postedAt); err != nil {
			return nil, wrapUnavailable("scan canonical job", err)
		}
		job.ID = domain.CanonicalJobID(id)
		_ = json.Unmarshal([]byte(tagsJSON), &job.Tags)
		if postedAt.Valid {
			if t, err := time.Parse(time.RFC3339, postedAt.String); err == nil {
				t = t.UTC()
				job.PostedAt = &t
			}
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable("iterate canonical jobs", err)
	}
	return out, nil
}
