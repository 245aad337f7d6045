package lever

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID string
	Slug     string // api.lever.co/v0/postings/<slug>
	Company  string
}

// Connector pulls postings from the Lever public postings API.
type Connector struct {
	cfg     Config
	client  *connector.Client
	apiBase string
}

func New(cfg Config, client *connector.Client) *Connector {
	if cfg.Company == "" {
		cfg.Company = cfg.Slug
	}
	return &Connector{cfg: cfg, client: client, apiBase: "https://api.lever.co"}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "lever" }

type posting struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"` // title
	HostedURL  string   `json:"hostedUrl"`
	ApplyURL   string   `json:"applyUrl"`
	CreatedAt  int64    `json:"createdAt"` // ms epoch
	Tags       []string `json:"tags"`
	Categories struct {
		Location string `json:"location"`
		Team     string `json:"team"`
	} `json:"categories"`
	WorkplaceType string `json:"workplaceType"`
	Salary        string `json:"salary"`
	Description   string `json:"description"` // html
}

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	apiURL := fmt.Sprintf("%s/v0/postings/%s?mode=json", c.apiBase, c.cfg.Slug)

	res, err := c.client.Get(ctx, c.cfg.SourceID, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var postings []posting
	if err := json.NewDecoder(res.Body).Decode(&postings); err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("decode postings: %w", err)}
	}

	out := make([]domain.RawPosting, 0, len(postings))
	for _, p := range postings {
		jobURL := p.HostedURL
		if jobURL == "" {
			jobURL = p.ApplyURL
		}

		var postedAt *time.Time
		if p.CreatedAt > 0 {
			t := time.UnixMilli(p.CreatedAt).UTC()
			postedAt = &t
		}

		tags := p.Tags
		if p.Categories.Team != "" {
			tags = append(tags, p.Categories.Team)
		}

		out = append(out, domain.RawPosting{
			ExternalID:      p.ID,
			Title:           p.Text,
			Company:         c.cfg.Company,
			Location:        p.Categories.Location,
			URL:             jobURL,
			DescriptionHTML: p.Description,
			SalaryText:      p.Salary,
			Tags:            tags,
			Remote:          strings.EqualFold(p.WorkplaceType, "remote"),
			PostedAt:        postedAt,
		})
	}
	return out, nil
}
