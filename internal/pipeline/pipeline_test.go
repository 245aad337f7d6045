package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/logging"
	"jobmatch-engine/internal/match"
	"jobmatch-engine/internal/normalize"
	"jobmatch-engine/internal/schedule"
	"jobmatch-engine/internal/store"
)

type fakeConnector struct {
	id       string
	postings []domain.RawPosting
	err      error
}

func (f *fakeConnector) ID() string   { return f.id }
func (f *fakeConnector) Kind() string { return "fake" }
func (f *fakeConnector) Fetch(context.Context) ([]domain.RawPosting, error) {
	return f.postings, f.err
}

// memStore is an in-memory Store with the same conflict semantics as the
// sqlite implementation.
type memStore struct {
	mu          sync.Mutex
	byFP        map[string]domain.CanonicalJobID
	sources     map[domain.CanonicalJobID][]string
	content     map[domain.CanonicalJobID]domain.JobRecord
	profiles    []domain.ProfileVector
	events      []domain.MatchEvent
	failUpserts int // fail the next N upserts with ErrConflict
}

func newMemStore() *memStore {
	return &memStore{
		byFP:    map[string]domain.CanonicalJobID{},
		sources: map[domain.CanonicalJobID][]string{},
		content: map[domain.CanonicalJobID]domain.JobRecord{},
	}
}

func (m *memStore) LookupFingerprint(_ context.Context, fp string) (domain.CanonicalJobID, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.byFP[fp]
	return id, append([]string(nil), m.sources[id]...), nil
}

func (m *memStore) UpsertJob(_ context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpserts > 0 {
		m.failUpserts--
		return fmt.Errorf("upsert: %w", store.ErrConflict)
	}
	if owner, ok := m.byFP[rec.Fingerprint]; ok && owner != canonical {
		return fmt.Errorf("upsert: %w", store.ErrConflict)
	}
	m.byFP[rec.Fingerprint] = canonical
	m.content[canonical] = rec
	for _, s := range m.sources[canonical] {
		if s == rec.SourceID {
			return nil
		}
	}
	m.sources[canonical] = append(m.sources[canonical], rec.SourceID)
	return nil
}

func (m *memStore) LinkDuplicate(_ context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources[canonical] {
		if s == rec.SourceID {
			return nil
		}
	}
	m.sources[canonical] = append(m.sources[canonical], rec.SourceID)
	return nil
}

func (m *memStore) ListActiveProfiles(context.Context) ([]domain.ProfileVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ProfileVector
	for _, p := range m.profiles {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetProfile(_ context.Context, id string) (domain.ProfileVector, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID == id {
			return p, true, nil
		}
	}
	return domain.ProfileVector{}, false, nil
}

func (m *memStore) ListCanonicalJobs(context.Context, int) ([]store.CanonicalJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.CanonicalJob
	for id, rec := range m.content {
		out = append(out, store.CanonicalJob{
			ID: id, Fingerprint: rec.Fingerprint, Title: rec.Title,
			Company: rec.Company, Location: rec.Location, WorkMode: rec.WorkMode,
			Description: rec.DescriptionText, URL: rec.URL, Tags: rec.Tags,
			SalaryMin: rec.SalaryMin, SalaryMax: rec.SalaryMax,
			PostedAt: rec.PostedAt,
		})
	}
	return out, nil
}

func (m *memStore) AppendMatchEvent(_ context.Context, ev domain.MatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) LatestMatch(_ context.Context, canonical domain.CanonicalJobID, profileID string) (domain.MatchEvent, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].CanonicalJobID == canonical && m.events[i].ProfileID == profileID {
			return m.events[i], true, nil
		}
	}
	return domain.MatchEvent{}, false, nil
}

func (m *memStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

type memSink struct {
	mu     sync.Mutex
	events []domain.MatchEvent
}

func (s *memSink) Publish(_ context.Context, ev domain.MatchEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *memSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func rawPosting(id, title string) domain.RawPosting {
	return domain.RawPosting{
		ExternalID:      id,
		Title:           title,
		Company:         "Acme",
		Location:        "Berlin",
		DescriptionText: "Run Go services on Kubernetes.",
	}
}

func newTestCoordinator(st *memStore, sk *memSink, conns map[string]connector.Connector) *Coordinator {
	return NewCoordinator(
		conns,
		st,
		normalize.New(normalize.NewVocabTokenizer([]string{"go", "kubernetes"})),
		match.NewScorer(0.5, nil),
		sk,
		logging.New("error", "console"),
		Options{PostingWorkers: 2},
	)
}

func TestRunIngestionCountsAndEvents(t *testing.T) {
	st := newMemStore()
	st.profiles = []domain.ProfileVector{
		{ID: "p1", Keywords: map[string]float64{"go": 1}, MinScore: 0.5, Active: true},
	}
	sk := &memSink{}
	c := newTestCoordinator(st, sk, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{
			rawPosting("1", "Platform Engineer"),
			rawPosting("2", "Data Engineer"),
			{ExternalID: "3"}, // missing title
		}},
	})

	report, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Duplicates)
	assert.Equal(t, 2, report.Events)
	assert.Equal(t, 2, sk.count())
	assert.Equal(t, 2, st.eventCount())
}

func TestIngestionScoresRemoteBackendPosting(t *testing.T) {
	st := newMemStore()
	st.profiles = []domain.ProfileVector{
		{
			ID:       "p1",
			Keywords: map[string]float64{"backend": 1.0},
			MustHave: []string{"backend"},
			MinScore: 0.3,
			Active:   true,
		},
	}
	sk := &memSink{}
	c := NewCoordinator(
		map[string]connector.Connector{
			"greenhouse": &fakeConnector{id: "greenhouse", postings: []domain.RawPosting{
				{
					ExternalID: "gh-123",
					Title:      "Senior Backend Engineer",
					Company:    "Acme",
					Location:   "Remote",
				},
			}},
		},
		st,
		normalize.New(normalize.NewVocabTokenizer([]string{"backend", "engineer"})),
		match.NewScorer(0.5, nil),
		sk,
		logging.New("error", "console"),
		Options{PostingWorkers: 2},
	)

	report, err := c.RunIngestion(context.Background(), "greenhouse")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Events)

	st.mu.Lock()
	require.Len(t, st.content, 1)
	for _, rec := range st.content {
		assert.Subset(t, rec.Tags, []string{"backend", "engineer"})
		assert.Equal(t, "Remote", rec.WorkMode)
	}
	require.Len(t, st.events, 1)
	ev := st.events[0]
	st.mu.Unlock()

	assert.Equal(t, "p1", ev.ProfileID)
	assert.InDelta(t, 1.0, ev.Score, 1e-9, "full keyword overlap")
	assert.Equal(t, domain.DecisionAccepted, ev.Decision)
	assert.Contains(t, ev.MatchedKeywords, "backend")
}

func TestRunIngestionSecondRunIsUpdate(t *testing.T) {
	st := newMemStore()
	sk := &memSink{}
	conn := &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{
		rawPosting("1", "Platform Engineer"),
	}}
	c := newTestCoordinator(st, sk, map[string]connector.Connector{"gh-acme": conn})

	_, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)

	report, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Zero(t, report.Created)
}

func TestRunIngestionCrossSourceDuplicateEmitsNoEvents(t *testing.T) {
	st := newMemStore()
	st.profiles = []domain.ProfileVector{
		{ID: "p1", Keywords: map[string]float64{"go": 1}, Active: true},
	}
	sk := &memSink{}
	c := newTestCoordinator(st, sk, map[string]connector.Connector{
		"gh-acme":    &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{rawPosting("1", "Platform Engineer")}},
		"lever-acme": &fakeConnector{id: "lever-acme", postings: []domain.RawPosting{rawPosting("a-1", "Platform Engineer")}},
	})

	_, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)
	eventsAfterFirst := st.eventCount()

	report, err := c.RunIngestion(context.Background(), "lever-acme")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Duplicates)
	assert.Zero(t, report.Created)
	assert.Equal(t, eventsAfterFirst, st.eventCount(), "duplicates must not be scored")

	st.mu.Lock()
	defer st.mu.Unlock()
	require.Len(t, st.sources, 1)
	for _, srcs := range st.sources {
		assert.ElementsMatch(t, []string{"gh-acme", "lever-acme"}, srcs)
	}
}

func TestRunIngestionConnectorFailureAborts(t *testing.T) {
	st := newMemStore()
	c := newTestCoordinator(st, &memSink{}, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme", err: &connector.Error{Kind: connector.Unreachable, SourceID: "gh-acme"}},
	})

	_, err := c.RunIngestion(context.Background(), "gh-acme")
	require.Error(t, err)
	assert.Equal(t, connector.Unreachable, connector.KindOf(err))
	assert.Zero(t, st.eventCount())
}

func TestRunIngestionUnknownSource(t *testing.T) {
	c := newTestCoordinator(newMemStore(), &memSink{}, nil)
	_, err := c.RunIngestion(context.Background(), "nope")
	require.Error(t, err)
}

func TestRunIngestionConflictRetriesOnce(t *testing.T) {
	st := newMemStore()
	st.failUpserts = 1
	sk := &memSink{}
	c := newTestCoordinator(st, sk, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{rawPosting("1", "Platform Engineer")}},
	})

	report, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Failed)
}

func TestRunIngestionPersistentConflictFailsPosting(t *testing.T) {
	st := newMemStore()
	st.failUpserts = 2
	c := newTestCoordinator(st, &memSink{}, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{rawPosting("1", "Platform Engineer")}},
	})

	report, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Created)
}

func TestRescoreProfileOnlyChangedOutcomes(t *testing.T) {
	st := newMemStore()
	st.profiles = []domain.ProfileVector{
		{ID: "p1", Keywords: map[string]float64{"go": 1}, MinScore: 0.5, Active: true},
	}
	sk := &memSink{}
	c := newTestCoordinator(st, sk, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme", postings: []domain.RawPosting{rawPosting("1", "Platform Engineer")}},
	})

	_, err := c.RunIngestion(context.Background(), "gh-acme")
	require.NoError(t, err)
	before := st.eventCount()

	// nothing changed: rescore appends nothing
	require.NoError(t, c.RescoreProfile(context.Background(), "p1"))
	assert.Equal(t, before, st.eventCount())

	// a threshold above any achievable score flips the decision: one new event
	st.mu.Lock()
	st.profiles[0].MinScore = 2
	st.mu.Unlock()
	require.NoError(t, c.RescoreProfile(context.Background(), "p1"))
	assert.Equal(t, before+1, st.eventCount())
}

func TestRescoreUnknownOrInactiveProfileIsNoOp(t *testing.T) {
	st := newMemStore()
	st.profiles = []domain.ProfileVector{{ID: "paused", Active: false}}
	c := newTestCoordinator(st, &memSink{}, nil)

	require.NoError(t, c.RescoreProfile(context.Background(), "missing"))
	require.NoError(t, c.RescoreProfile(context.Background(), "paused"))
	assert.Zero(t, st.eventCount())
}

func TestRunTaskDispatch(t *testing.T) {
	st := newMemStore()
	c := newTestCoordinator(st, &memSink{}, map[string]connector.Connector{
		"gh-acme": &fakeConnector{id: "gh-acme"},
	})

	require.NoError(t, c.RunTask(context.Background(), schedule.KindIngestSource, "gh-acme"))
	require.Error(t, c.RunTask(context.Background(), schedule.Kind("bogus"), "x"))
}

func TestKeyedLocksSerialize(t *testing.T) {
	locks := newKeyedLocks()
	var active, maxActive int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same-key")
			defer unlock()
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)

	// released locks leave no residue
	locks.mu.Lock()
	assert.Empty(t, locks.locks)
	locks.mu.Unlock()
}

func TestKeyedLocksIndependentKeys(t *testing.T) {
	locks := newKeyedLocks()
	u1 := locks.Lock("a")
	done := make(chan struct{})
	go func() {
		u2 := locks.Lock("b")
		u2()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a different key must not block")
	}
	u1()
}
