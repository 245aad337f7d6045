package workday

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID  string
	SearchURL string // public CXS jobs endpoint: .../wday/cxs/<tenant>/<site>/jobs
	Company   string
}

// Connector pulls postings from a Workday tenant's public CXS search
// endpoint. URLs that are not the public jobs endpoint yield nothing rather
// than an error, since tenants frequently gate their boards.
type Connector struct {
	cfg    Config
	client *connector.Client
}

func New(cfg Config, client *connector.Client) *Connector {
	if cfg.Company == "" {
		cfg.Company = tenantFromURL(cfg.SearchURL)
	}
	return &Connector{cfg: cfg, client: client}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "workday" }

type searchResponse struct {
	JobPostings []struct {
		Title          string   `json:"title"`
		JobPostingID   string   `json:"jobPostingId"`
		ExternalPath   string   `json:"externalPath"`
		LocationsText  string   `json:"locationsText"`
		PostedOn       string   `json:"postedOn"`
		Keywords       []string `json:"keywords"`
		JobPostingInfo struct {
			Title          string `json:"title"`
			JobDescription string `json:"jobDescription"`
			Location       string `json:"location"`
			CompanyName    string `json:"companyName"`
			ExternalURL    string `json:"externalUrl"`
			CareerPageURL  string `json:"careerPageUrl"`
			StartDate      string `json:"startDate"`
		} `json:"jobPostingInfo"`
	} `json:"jobPostings"`
}

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	if !isPublicJobsURL(c.cfg.SearchURL) {
		return nil, nil
	}

	res, err := c.client.Get(ctx, c.cfg.SourceID, c.cfg.SearchURL, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var payload searchResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("decode search: %w", err)}
	}

	out := make([]domain.RawPosting, 0, len(payload.JobPostings))
	for _, job := range payload.JobPostings {
		info := job.JobPostingInfo

		title := info.Title
		if title == "" {
			title = job.Title
		}
		location := info.Location
		if location == "" {
			location = job.LocationsText
		}
		company := info.CompanyName
		if company == "" {
			company = c.cfg.Company
		}
		jobURL := info.ExternalURL
		if jobURL == "" {
			jobURL = info.CareerPageURL
		}
		if jobURL == "" && job.ExternalPath != "" {
			jobURL = siteBaseURL(c.cfg.SearchURL) + job.ExternalPath
		}

		out = append(out, domain.RawPosting{
			ExternalID:      job.JobPostingID,
			Title:           title,
			Company:         company,
			Location:        location,
			URL:             jobURL,
			DescriptionHTML: info.JobDescription,
			Tags:            job.Keywords,
			Remote:          strings.Contains(strings.ToLower(job.LocationsText), "remote"),
			PostedAt:        parsePostedOn(job.PostedOn, info.StartDate),
		})
	}
	return out, nil
}

func isPublicJobsURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	return strings.Contains(path, "/wday/") && strings.Contains(path, "/cxs/") && strings.HasSuffix(path, "/jobs")
}

func siteBaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func parsePostedOn(candidates ...string) *time.Time {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, c); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

func tenantFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Workday"
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) > 2 {
		return segs[2]
	}
	if u.Hostname() != "" {
		return u.Hostname()
	}
	return "Workday"
}
