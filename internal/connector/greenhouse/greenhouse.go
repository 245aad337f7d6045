package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID string
	BoardURL string // e.g. https://boards-api.greenhouse.io/v1/boards/acme
	Company  string // display name; derived from the board URL when empty
}

// Connector pulls postings from the Greenhouse public boards API. It keeps
// the last ETag so an unchanged board costs a single 304 round trip.
type Connector struct {
	cfg    Config
	client *connector.Client

	mu   sync.Mutex
	etag string
}

func New(cfg Config, client *connector.Client) *Connector {
	cfg.BoardURL = strings.TrimRight(strings.TrimSpace(cfg.BoardURL), "/")
	if cfg.Company == "" {
		cfg.Company = companyFromBoard(cfg.BoardURL)
	}
	return &Connector{cfg: cfg, client: client}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "greenhouse" }

type boardResponse struct {
	Jobs []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		AbsoluteURL string `json:"absolute_url"`
		UpdatedAt   string `json:"updated_at"`
		CreatedAt   string `json:"created_at"`
		Content     string `json:"content"` // HTML, entity-escaped by the API
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
		Departments []struct {
			Name string `json:"name"`
		} `json:"departments"`
		Offices []struct {
			Name string `json:"name"`
		} `json:"offices"`
		Metadata []struct {
			Value any `json:"value"`
		} `json:"metadata"`
	} `json:"jobs"`
}

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	jobsURL := c.cfg.BoardURL
	if !strings.HasSuffix(jobsURL, "/jobs") {
		jobsURL += "/jobs"
	}
	jobsURL += "?content=true"

	header := http.Header{}
	c.mu.Lock()
	if c.etag != "" {
		header.Set("If-None-Match", c.etag)
	}
	c.mu.Unlock()

	res, err := c.client.Get(ctx, c.cfg.SourceID, jobsURL, header)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if etag := res.Header.Get("ETag"); etag != "" {
		c.mu.Lock()
		c.etag = etag
		c.mu.Unlock()
	}

	var payload boardResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("decode board: %w", err)}
	}

	out := make([]domain.RawPosting, 0, len(payload.Jobs))
	for _, job := range payload.Jobs {
		var tags []string
		for _, d := range job.Departments {
			tags = append(tags, d.Name)
		}
		for _, o := range job.Offices {
			tags = append(tags, o.Name)
		}
		for _, m := range job.Metadata {
			if s, ok := m.Value.(string); ok {
				tags = append(tags, s)
			}
		}

		absURL := job.AbsoluteURL
		if absURL == "" {
			absURL = fmt.Sprintf("%s/jobs/%d", c.cfg.BoardURL, job.ID)
		}

		out = append(out, domain.RawPosting{
			ExternalID:      fmt.Sprint(job.ID),
			Title:           job.Title,
			Company:         c.cfg.Company,
			Location:        job.Location.Name,
			URL:             absURL,
			DescriptionHTML: html.UnescapeString(job.Content),
			Tags:            tags,
			Remote:          strings.Contains(strings.ToLower(job.Location.Name), "remote"),
			PostedAt:        parseTime(job.UpdatedAt, job.CreatedAt),
		})
	}
	return out, nil
}

func parseTime(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, c); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func companyFromBoard(boardURL string) string {
	u, err := url.Parse(boardURL)
	if err != nil {
		return "Greenhouse"
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) > 0 {
		return segs[len(segs)-1]
	}
	if u.Hostname() != "" {
		return u.Hostname()
	}
	return "Greenhouse"
}
