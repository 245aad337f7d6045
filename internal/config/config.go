// internal/config/config.go
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source describes one connector instance. Kind selects the implementation;
// the remaining fields are per-kind and ignored by the others.
type Source struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"` // greenhouse | lever | workday | board | rss | imapfeed
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`

	Board     string `yaml:"board"`      // greenhouse board URL or generic board page
	Slug      string `yaml:"slug"`       // lever company slug
	SearchURL string `yaml:"search_url"` // workday public CXS jobs endpoint
	FeedURL   string `yaml:"feed_url"`   // rss/atom feed URL
	Company   string `yaml:"company"`    // display name for board-style sources

	IMAP struct {
		Host        string   `yaml:"host"`
		Port        int      `yaml:"port"`
		Username    string   `yaml:"username"`
		Mailbox     string   `yaml:"mailbox"`
		MaxMessages int      `yaml:"max_messages"`
		SubjectAny  []string `yaml:"subject_any"`
	} `yaml:"imap"`

	RequestsPerSec float64 `yaml:"requests_per_sec"`
}

type Config struct {
	App struct {
		DataDir   string `yaml:"data_dir"`
		LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
		LogFormat string `yaml:"log_format"` // console, json
	} `yaml:"app"`

	Sources []Source `yaml:"sources"`

	Scheduler struct {
		WorkerCount           int      `yaml:"worker_count"`
		BackoffBase           Duration `yaml:"backoff_base"`
		BackoffCap            Duration `yaml:"backoff_cap"`
		MaxAttempts           int      `yaml:"max_attempts"`
		AuthFailureAlertAfter int      `yaml:"auth_failure_alert_after"`
		RescoreInterval       Duration `yaml:"rescore_interval"`
	} `yaml:"scheduler"`

	Pipeline struct {
		PostingWorkers int      `yaml:"posting_workers"`
		FetchTimeout   Duration `yaml:"fetch_timeout"`
		PersistTimeout Duration `yaml:"persist_timeout"`
	} `yaml:"pipeline"`

	Matching struct {
		// BlendWeight is the share of the embedding similarity in the final
		// score when both a keyword score and an embedding score exist.
		BlendWeight float64  `yaml:"blend_weight"`
		Vocabulary  []string `yaml:"vocabulary"`
	} `yaml:"matching"`

	Sink struct {
		BufferSize int `yaml:"buffer_size"`
		AMQP       struct {
			Enabled    bool   `yaml:"enabled"`
			URL        string `yaml:"url"`
			Exchange   string `yaml:"exchange"`
			RoutingKey string `yaml:"routing_key"`
		} `yaml:"amqp"`
	} `yaml:"sink"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.DataDir == "" {
		c.App.DataDir = "."
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "console"
	}
	if c.Scheduler.WorkerCount == 0 {
		c.Scheduler.WorkerCount = 4
	}
	if c.Scheduler.BackoffBase == 0 {
		c.Scheduler.BackoffBase = Duration(30 * time.Second)
	}
	if c.Scheduler.BackoffCap == 0 {
		c.Scheduler.BackoffCap = Duration(30 * time.Minute)
	}
	if c.Scheduler.MaxAttempts == 0 {
		c.Scheduler.MaxAttempts = 8
	}
	if c.Scheduler.AuthFailureAlertAfter == 0 {
		c.Scheduler.AuthFailureAlertAfter = 3
	}
	if c.Scheduler.RescoreInterval == 0 {
		c.Scheduler.RescoreInterval = Duration(3 * time.Hour)
	}
	if c.Pipeline.PostingWorkers == 0 {
		c.Pipeline.PostingWorkers = 4
	}
	if c.Pipeline.FetchTimeout == 0 {
		c.Pipeline.FetchTimeout = Duration(2 * time.Minute)
	}
	if c.Pipeline.PersistTimeout == 0 {
		c.Pipeline.PersistTimeout = Duration(10 * time.Second)
	}
	if c.Matching.BlendWeight == 0 {
		c.Matching.BlendWeight = 0.5
	}
	if c.Sink.BufferSize == 0 {
		c.Sink.BufferSize = 256
	}
	for i := range c.Sources {
		if c.Sources[i].Interval == 0 {
			c.Sources[i].Interval = Duration(3 * time.Hour)
		}
		if c.Sources[i].RequestsPerSec == 0 {
			c.Sources[i].RequestsPerSec = 1.0
		}
		if c.Sources[i].IMAP.Mailbox == "" {
			c.Sources[i].IMAP.Mailbox = "INBOX"
		}
		if c.Sources[i].IMAP.MaxMessages == 0 {
			c.Sources[i].IMAP.MaxMessages = 50
		}
	}
}
