package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/schedule"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db.Pool))
	return db
}

func testRecord(sourceID, externalID string) domain.JobRecord {
	posted := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return domain.JobRecord{
		SourceID:        sourceID,
		ExternalID:      externalID,
		Title:           "Platform Engineer",
		Company:         "Acme",
		Location:        "Berlin",
		WorkMode:        "Remote",
		DescriptionText: "Build the platform.",
		URL:             "https://acme.example.com/jobs/1",
		Tags:            []string{"go", "kubernetes"},
		SalaryMin:       120000,
		SalaryMax:       150000,
		PostedAt:        &posted,
		Fingerprint:     "fp-" + externalID,
	}
}

func TestUpsertJobAndLookup(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	rec := testRecord("gh-acme", "101")

	id, sources, err := db.LookupFingerprint(ctx, rec.Fingerprint)
	require.NoError(t, err)
	require.Empty(t, id)
	require.Empty(t, sources)

	require.NoError(t, db.UpsertJob(ctx, rec, "canon-1"))

	id, sources, err = db.LookupFingerprint(ctx, rec.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, domain.CanonicalJobID("canon-1"), id)
	require.Equal(t, []string{"gh-acme"}, sources)

	jobs, err := db.ListCanonicalJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Platform Engineer", jobs[0].Title)
	require.Equal(t, []string{"go", "kubernetes"}, jobs[0].Tags)
	require.Equal(t, 120000, jobs[0].SalaryMin)
	require.Equal(t, 150000, jobs[0].SalaryMax)
	require.NotNil(t, jobs[0].PostedAt)
}

func TestUpsertJobRefreshKeepsCanonicalID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord("gh-acme", "101")
	require.NoError(t, db.UpsertJob(ctx, rec, "canon-1"))

	rec.DescriptionText = "Build and run the platform."
	require.NoError(t, db.UpsertJob(ctx, rec, "canon-1"))

	jobs, err := db.ListCanonicalJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Build and run the platform.", jobs[0].Description)
}

func TestUpsertJobFingerprintRaceConflicts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord("gh-acme", "101")
	require.NoError(t, db.UpsertJob(ctx, rec, "canon-1"))

	// a second writer classified the same fingerprint under a fresh id
	other := testRecord("lever-acme", "a-101")
	other.Fingerprint = rec.Fingerprint
	err := db.UpsertJob(ctx, other, "canon-2")
	require.ErrorIs(t, err, ErrConflict)
}

func TestLinkDuplicateLeavesContentAlone(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	rec := testRecord("gh-acme", "101")
	require.NoError(t, db.UpsertJob(ctx, rec, "canon-1"))

	dup := testRecord("lever-acme", "a-101")
	dup.Fingerprint = rec.Fingerprint
	dup.DescriptionText = "different wording from the other board"
	require.NoError(t, db.LinkDuplicate(ctx, dup, "canon-1"))

	_, sources, err := db.LookupFingerprint(ctx, rec.Fingerprint)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"gh-acme", "lever-acme"}, sources)

	jobs, err := db.ListCanonicalJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "Build the platform.", jobs[0].Description)
}

func TestProfilesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	p := domain.ProfileVector{
		ID:             "p1",
		Name:           "Backend",
		Keywords:       map[string]float64{"go": 2, "postgres": 1},
		MustHave:       []string{"go"},
		AllowedRegions: []string{"Germany"},
		TitleKeywords:  []string{"engineer"},
		MinScore:       0.4,
		Active:         true,
	}
	require.NoError(t, db.UpsertProfile(ctx, p))
	require.NoError(t, db.UpsertProfile(ctx, domain.ProfileVector{ID: "p2", Name: "Paused", Active: false}))

	active, err := db.ListActiveProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "p1", active[0].ID)
	require.Equal(t, p.Keywords, active[0].Keywords)
	require.Equal(t, p.AllowedRegions, active[0].AllowedRegions)
	require.Equal(t, p.TitleKeywords, active[0].TitleKeywords)

	got, found, err := db.GetProfile(ctx, "p2")
	require.NoError(t, err)
	require.True(t, found)
	require.False(t, got.Active)

	_, found, err = db.GetProfile(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestMatchEventsAppendOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ev := domain.MatchEvent{
		CanonicalJobID:  "canon-1",
		ProfileID:       "p1",
		Score:           0.3,
		Decision:        domain.DecisionRejected,
		ComputedAt:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		MatchedKeywords: []string{"go"},
	}
	require.NoError(t, db.AppendMatchEvent(ctx, ev))

	ev.Score = 0.7
	ev.Decision = domain.DecisionAccepted
	ev.ComputedAt = ev.ComputedAt.Add(time.Hour)
	require.NoError(t, db.AppendMatchEvent(ctx, ev))

	n, err := db.CountMatchEvents(ctx, "canon-1", "p1")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	latest, found, err := db.LatestMatch(ctx, "canon-1", "p1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.DecisionAccepted, latest.Decision)
	require.InDelta(t, 0.7, latest.Score, 1e-9)
}

func TestTaskJournalSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	run := schedule.TaskRun{
		Kind:      schedule.KindIngestSource,
		TargetID:  "gh-acme",
		State:     schedule.StateFailed,
		Attempt:   2,
		NextRunAt: time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC),
		LastError: "connector gh-acme: unreachable",
	}
	require.NoError(t, db.RecordTaskRun(ctx, run))

	run.State = schedule.StateSucceeded
	run.Attempt = 0
	run.LastError = ""
	require.NoError(t, db.RecordTaskRun(ctx, run))

	runs, err := db.ListTaskRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, schedule.StateSucceeded, runs[0].State)
	require.Zero(t, runs[0].Attempt)
}
