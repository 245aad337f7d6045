package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"jobmatch-engine/internal/config"
	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/connector/board"
	"jobmatch-engine/internal/connector/greenhouse"
	"jobmatch-engine/internal/connector/imapfeed"
	"jobmatch-engine/internal/connector/lever"
	"jobmatch-engine/internal/connector/rss"
	"jobmatch-engine/internal/connector/workday"
	"jobmatch-engine/internal/logging"
	"jobmatch-engine/internal/match"
	"jobmatch-engine/internal/normalize"
	"jobmatch-engine/internal/pipeline"
	"jobmatch-engine/internal/schedule"
	"jobmatch-engine/internal/secrets"
	"jobmatch-engine/internal/sink"
	"jobmatch-engine/internal/store"
)

// engine bundles everything a command needs after bootstrap.
type engine struct {
	cfg   config.Config
	log   *slog.Logger
	db    *store.DB
	lock  *flock.Flock
	hub   *sink.Hub
	buf   *sink.Buffered
	amqp  *sink.AMQPPublisher
	coord *pipeline.Coordinator
	sched *schedule.Scheduler
}

// newEngine bootstraps config, logging, the data-dir lock, the store and the
// pipeline. The caller must call close when done.
func newEngine() (*engine, error) {
	dataDir := flagDataDir
	if dataDir == "" {
		dataDir = os.Getenv("JOBMATCH_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}

	// one engine per data dir; a second instance would corrupt scheduling
	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data dir lock: %w", err)
	}
	if !held {
		return nil, fmt.Errorf("data dir %s is locked by another engine instance", dataDir)
	}

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath, err = config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			_ = lock.Unlock()
			return nil, fmt.Errorf("config bootstrap: %w", err)
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if cfg.App.DataDir == "." {
		cfg.App.DataDir = dataDir
	}

	log := logging.New(cfg.App.LogLevel, cfg.App.LogFormat)

	v := config.Validate(cfg)
	for _, w := range v.Warnings {
		log.Warn("config warning", "detail", w)
	}
	if !v.OK() {
		_ = lock.Unlock()
		return nil, fmt.Errorf("invalid config: %v", v.Errors)
	}

	db, err := store.Open(filepath.Join(cfg.App.DataDir, "jobmatch.db"))
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := store.Migrate(db.Pool); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	e := &engine{cfg: cfg, log: log, db: db, lock: lock, hub: sink.NewHub()}

	sinks := sink.Multi{e.hub}
	if cfg.Sink.AMQP.Enabled {
		sinkLog := log.With("component", "sink")
		e.amqp = sink.NewAMQPPublisher(sink.AMQPConfig{
			URL:        cfg.Sink.AMQP.URL,
			Exchange:   cfg.Sink.AMQP.Exchange,
			RoutingKey: cfg.Sink.AMQP.RoutingKey,
		}, sinkLog)
		e.buf = sink.NewBuffered(e.amqp, cfg.Sink.BufferSize, sinkLog)
		sinks = append(sinks, e.buf)
	}

	tokenizer := normalize.NewVocabTokenizer(cfg.Matching.Vocabulary)
	scorer := match.NewScorer(cfg.Matching.BlendWeight, nil)

	e.coord = pipeline.NewCoordinator(
		buildConnectors(cfg, log),
		db,
		normalize.New(tokenizer),
		scorer,
		sinks,
		log.With("component", "pipeline"),
		pipeline.Options{
			PostingWorkers: cfg.Pipeline.PostingWorkers,
			FetchTimeout:   cfg.Pipeline.FetchTimeout.Std(),
			PersistTimeout: cfg.Pipeline.PersistTimeout.Std(),
		},
	)

	e.sched = schedule.New(e.coord, db, func(run schedule.TaskRun, reason string) {
		log.Error("operational alert", "kind", run.Kind, "target", run.TargetID,
			"state", run.State, "attempts", run.Attempt, "reason", reason)
	}, log.With("component", "scheduler"), schedule.Options{
		WorkerCount: cfg.Scheduler.WorkerCount,
		Backoff: schedule.Backoff{
			Base:       cfg.Scheduler.BackoffBase.Std(),
			Cap:        cfg.Scheduler.BackoffCap.Std(),
			JitterFrac: 0.2,
		},
		MaxAttempts:           cfg.Scheduler.MaxAttempts,
		AuthFailureAlertAfter: cfg.Scheduler.AuthFailureAlertAfter,
	})

	return e, nil
}

func (e *engine) close() {
	if e.amqp != nil {
		_ = e.amqp.Close()
	}
	_ = e.db.Close()
	_ = e.lock.Unlock()
}

// buildConnectors instantiates one connector per enabled source. Each source
// gets its own rate limiter so a slow board cannot starve the others.
func buildConnectors(cfg config.Config, log *slog.Logger) map[string]connector.Connector {
	out := make(map[string]connector.Connector)
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		client := connector.NewClient(connector.NewHostLimiter(src.RequestsPerSec, 2))
		switch src.Kind {
		case "greenhouse":
			out[src.ID] = greenhouse.New(greenhouse.Config{
				SourceID: src.ID, BoardURL: src.Board, Company: src.Company,
			}, client)
		case "lever":
			out[src.ID] = lever.New(lever.Config{
				SourceID: src.ID, Slug: src.Slug, Company: src.Company,
			}, client)
		case "workday":
			out[src.ID] = workday.New(workday.Config{
				SourceID: src.ID, SearchURL: src.SearchURL, Company: src.Company,
			}, client)
		case "board":
			out[src.ID] = board.New(board.Config{
				SourceID: src.ID, PageURL: src.Board, Company: src.Company,
			}, client)
		case "rss":
			out[src.ID] = rss.New(rss.Config{
				SourceID: src.ID, FeedURL: src.FeedURL, Company: src.Company,
			}, client)
		case "imapfeed":
			account := secrets.IMAPAccount(src.IMAP.Username, src.IMAP.Host)
			out[src.ID] = imapfeed.New(imapfeed.Config{
				SourceID:    src.ID,
				Host:        src.IMAP.Host,
				Port:        src.IMAP.Port,
				Username:    src.IMAP.Username,
				Mailbox:     src.IMAP.Mailbox,
				MaxMessages: src.IMAP.MaxMessages,
				SubjectAny:  src.IMAP.SubjectAny,
				Password: func() (string, error) {
					return secrets.GetIMAPPassword(account)
				},
			})
		default:
			log.Warn("unknown source kind, skipping", "id", src.ID, "kind", src.Kind)
		}
	}
	return out
}
