package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/dedup"
	"jobmatch-engine/internal/domain"
	"jobmatch-engine/internal/match"
	"jobmatch-engine/internal/normalize"
	"jobmatch-engine/internal/schedule"
	"jobmatch-engine/internal/sink"
	"jobmatch-engine/internal/store"
)

// Store is the persistence surface the coordinator needs.
type Store interface {
	LookupFingerprint(ctx context.Context, fingerprint string) (domain.CanonicalJobID, []string, error)
	UpsertJob(ctx context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error
	LinkDuplicate(ctx context.Context, rec domain.JobRecord, canonical domain.CanonicalJobID) error
	ListActiveProfiles(ctx context.Context) ([]domain.ProfileVector, error)
	GetProfile(ctx context.Context, id string) (domain.ProfileVector, bool, error)
	ListCanonicalJobs(ctx context.Context, limit int) ([]store.CanonicalJob, error)
	AppendMatchEvent(ctx context.Context, ev domain.MatchEvent) error
	LatestMatch(ctx context.Context, canonical domain.CanonicalJobID, profileID string) (domain.MatchEvent, bool, error)
}

// Report summarizes one ingestion run for logging and the status surface.
type Report struct {
	SourceID   string
	Processed  int
	Created    int
	Updated    int
	Duplicates int
	Failed     int
	Events     int
}

type Options struct {
	PostingWorkers int
	FetchTimeout   time.Duration
	PersistTimeout time.Duration
}

// Coordinator drives fetch, normalize, dedup, persist and score for each
// source. It is the schedule.Runner behind both task kinds.
type Coordinator struct {
	connectors map[string]connector.Connector
	store      Store
	normalizer *normalize.Normalizer
	classifier *dedup.Classifier
	scorer     *match.Scorer
	sink       sink.Sink
	log        *slog.Logger
	opts       Options

	locks *keyedLocks
}

func NewCoordinator(
	connectors map[string]connector.Connector,
	st Store,
	normalizer *normalize.Normalizer,
	scorer *match.Scorer,
	eventSink sink.Sink,
	log *slog.Logger,
	opts Options,
) *Coordinator {
	if opts.PostingWorkers <= 0 {
		opts.PostingWorkers = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 2 * time.Minute
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 30 * time.Second
	}
	return &Coordinator{
		connectors: connectors,
		store:      st,
		normalizer: normalizer,
		classifier: dedup.NewClassifier(st),
		scorer:     scorer,
		sink:       eventSink,
		log:        log,
		opts:       opts,
		locks:      newKeyedLocks(),
	}
}

// RunTask dispatches a scheduled task to the matching operation.
func (c *Coordinator) RunTask(ctx context.Context, kind schedule.Kind, targetID string) error {
	switch kind {
	case schedule.KindIngestSource:
		report, err := c.RunIngestion(ctx, targetID)
		if err != nil {
			return err
		}
		c.log.Info("ingestion finished",
			"source", report.SourceID,
			"processed", report.Processed,
			"created", report.Created,
			"updated", report.Updated,
			"duplicates", report.Duplicates,
			"failed", report.Failed,
			"events", report.Events,
		)
		return nil
	case schedule.KindRescoreProfile:
		return c.RescoreProfile(ctx, targetID)
	default:
		return fmt.Errorf("unknown task kind %q", kind)
	}
}

// RunIngestion fetches one source and pushes every posting through the
// pipeline. A connector failure aborts the whole run; a bad individual
// posting only bumps the Failed count.
func (c *Coordinator) RunIngestion(ctx context.Context, sourceID string) (Report, error) {
	report := Report{SourceID: sourceID}

	conn, ok := c.connectors[sourceID]
	if !ok {
		return report, fmt.Errorf("unknown source %q", sourceID)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	postings, err := conn.Fetch(fetchCtx)
	cancel()
	if err != nil {
		return report, fmt.Errorf("fetch %s: %w", sourceID, err)
	}
	report.Processed = len(postings)

	profiles, err := c.store.ListActiveProfiles(ctx)
	if err != nil {
		return report, fmt.Errorf("load profiles: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.PostingWorkers)

	for _, raw := range postings {
		raw := raw
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			outcome, err := c.processPosting(gctx, sourceID, raw, profiles)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				c.log.Warn("posting rejected",
					"source", sourceID, "external_id", raw.ExternalID, "err", err)
				return nil
			}
			switch outcome.decision {
			case dedup.DecisionNew:
				report.Created++
			case dedup.DecisionUpdate:
				report.Updated++
			case dedup.DecisionDuplicate:
				report.Duplicates++
			}
			report.Events += outcome.events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

type postingOutcome struct {
	decision dedup.Decision
	events   int
}

func (c *Coordinator) processPosting(ctx context.Context, sourceID string, raw domain.RawPosting, profiles []domain.ProfileVector) (postingOutcome, error) {
	rec, err := c.normalizer.Normalize(raw, sourceID)
	if err != nil {
		return postingOutcome{}, err
	}
	rec.Fingerprint = dedup.Fingerprint(rec)

	res, err := c.persistClassified(ctx, rec)
	if errors.Is(err, store.ErrConflict) {
		// another writer claimed the fingerprint between classify and
		// persist; one retry with a fresh lookup resolves it
		res, err = c.persistClassified(ctx, rec)
	}
	if err != nil {
		return postingOutcome{}, err
	}

	out := postingOutcome{decision: res.Decision}
	if res.Decision == dedup.DecisionDuplicate {
		// a cross-post carries no new content, so it triggers no scoring
		return out, nil
	}

	for _, profile := range profiles {
		ev := c.scorer.Score(rec, res.CanonicalID, profile)
		if err := c.emit(ctx, ev); err != nil {
			return out, err
		}
		out.events++
	}
	return out, nil
}

// persistClassified classifies the record and writes it under a per-canonical
// lock so concurrent postings resolving to the same role serialize.
func (c *Coordinator) persistClassified(ctx context.Context, rec domain.JobRecord) (dedup.Result, error) {
	res, err := c.classifier.Classify(ctx, rec)
	if err != nil {
		return dedup.Result{}, err
	}

	unlock := c.locks.Lock(string(res.CanonicalID))
	defer unlock()

	pctx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
	defer cancel()

	if res.Decision == dedup.DecisionDuplicate {
		err = c.store.LinkDuplicate(pctx, rec, res.CanonicalID)
	} else {
		err = c.store.UpsertJob(pctx, rec, res.CanonicalID)
	}
	if err != nil {
		return dedup.Result{}, err
	}
	return res, nil
}

// RescoreProfile recomputes scores for one profile over the stored corpus.
// Only changed outcomes append and publish a new event, so a no-op rescore
// leaves the history untouched.
func (c *Coordinator) RescoreProfile(ctx context.Context, profileID string) error {
	profile, found, err := c.store.GetProfile(ctx, profileID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", profileID, err)
	}
	if !found || !profile.Active {
		c.log.Info("rescore skipped", "profile", profileID, "found", found)
		return nil
	}

	jobs, err := c.store.ListCanonicalJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	var changed int
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec := domain.JobRecord{
			Title:           job.Title,
			Company:         job.Company,
			Location:        job.Location,
			WorkMode:        job.WorkMode,
			DescriptionText: job.Description,
			URL:             job.URL,
			Tags:            job.Tags,
			SalaryMin:       job.SalaryMin,
			SalaryMax:       job.SalaryMax,
			PostedAt:        job.PostedAt,
			Fingerprint:     job.Fingerprint,
		}
		ev := c.scorer.Score(rec, job.ID, profile)

		prev, havePrev, err := c.store.LatestMatch(ctx, job.ID, profile.ID)
		if err != nil {
			return err
		}
		if havePrev && prev.Decision == ev.Decision && prev.Score == ev.Score {
			continue
		}
		if err := c.emit(ctx, ev); err != nil {
			return err
		}
		changed++
	}

	c.log.Info("rescore finished", "profile", profileID, "jobs", len(jobs), "changed", changed)
	return nil
}

// emit appends the event to the durable history first, then hands it to the
// sink. The sink side never fails the run; buffering absorbs outages.
func (c *Coordinator) emit(ctx context.Context, ev domain.MatchEvent) error {
	if err := c.store.AppendMatchEvent(ctx, ev); err != nil {
		return err
	}
	if err := c.sink.Publish(ctx, ev); err != nil {
		c.log.Warn("event publish failed", "canonical_id", ev.CanonicalJobID,
			"profile", ev.ProfileID, "err", err)
	}
	return nil
}
