package config

import (
	"fmt"
	"strings"
	"time"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

var sourceKinds = map[string]bool{
	"greenhouse": true,
	"lever":      true,
	"workday":    true,
	"board":      true,
	"rss":        true,
	"imapfeed":   true,
}

// Validate checks structural sanity of the config; it does not touch the
// network or the keychain.
func Validate(cfg Config) Validation {
	var res Validation

	if cfg.Scheduler.WorkerCount <= 0 {
		res.addErr("scheduler.worker_count must be > 0")
	}
	if cfg.Scheduler.MaxAttempts <= 0 {
		res.addErr("scheduler.max_attempts must be > 0")
	}
	if cfg.Scheduler.BackoffBase <= 0 {
		res.addErr("scheduler.backoff_base must be > 0")
	}
	if cfg.Scheduler.BackoffCap < cfg.Scheduler.BackoffBase {
		res.addErr("scheduler.backoff_cap must be >= scheduler.backoff_base")
	}
	if cfg.Pipeline.PostingWorkers <= 0 {
		res.addErr("pipeline.posting_workers must be > 0")
	}
	if cfg.Matching.BlendWeight < 0 || cfg.Matching.BlendWeight > 1 {
		res.addErr("matching.blend_weight must be within [0,1]")
	}
	if cfg.Sink.BufferSize <= 0 {
		res.addErr("sink.buffer_size must be > 0")
	}
	if cfg.Sink.AMQP.Enabled && strings.TrimSpace(cfg.Sink.AMQP.URL) == "" {
		res.addErr("sink.amqp.url is required when sink.amqp.enabled=true")
	}

	enabled := 0
	seen := map[string]bool{}
	for _, s := range cfg.Sources {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			res.addErr("sources[]: id is required")
			continue
		}
		if seen[id] {
			res.addErr("sources[%s]: duplicate id", id)
		}
		seen[id] = true

		if !sourceKinds[s.Kind] {
			res.addErr("sources[%s]: unknown kind %q", id, s.Kind)
			continue
		}
		if s.Enabled {
			enabled++
		}

		switch s.Kind {
		case "greenhouse", "board":
			if strings.TrimSpace(s.Board) == "" {
				res.addErr("sources[%s]: board is required for kind=%s", id, s.Kind)
			}
		case "lever":
			if strings.TrimSpace(s.Slug) == "" {
				res.addErr("sources[%s]: slug is required for kind=lever", id)
			}
		case "workday":
			if strings.TrimSpace(s.SearchURL) == "" {
				res.addErr("sources[%s]: search_url is required for kind=workday", id)
			}
		case "rss":
			if strings.TrimSpace(s.FeedURL) == "" {
				res.addErr("sources[%s]: feed_url is required for kind=rss", id)
			}
		case "imapfeed":
			if strings.TrimSpace(s.IMAP.Host) == "" {
				res.addErr("sources[%s]: imap.host is required for kind=imapfeed", id)
			}
			if strings.TrimSpace(s.IMAP.Username) == "" {
				res.addErr("sources[%s]: imap.username is required for kind=imapfeed", id)
			}
			if len(s.IMAP.SubjectAny) == 0 {
				res.addWarn("sources[%s]: imap.subject_any is empty; the feed may match nothing", id)
			}
		}

		if s.Interval.Std() < 10*time.Second {
			res.addWarn("sources[%s]: interval %s is very low and may cause rate limits", id, s.Interval)
		}
	}

	if enabled == 0 {
		res.addWarn("no sources enabled; the scheduler will only run re-scoring")
	}
	if len(cfg.Matching.Vocabulary) == 0 {
		res.addWarn("matching.vocabulary is empty; records will carry no tags and keyword scores will be 0")
	}

	return res
}
