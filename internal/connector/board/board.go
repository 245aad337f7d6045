package board

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID string
	PageURL  string // career page listing job links
	Company  string
}

// Connector scrapes a generic HTML career board: it discovers anchors that
// look like job links, then hydrates each job page for title, location and
// description. Hydration failures keep the minimal entry instead of dropping
// the posting.
type Connector struct {
	cfg    Config
	client *connector.Client
}

func New(cfg Config, client *connector.Client) *Connector {
	cfg.PageURL = strings.TrimSpace(cfg.PageURL)
	return &Connector{cfg: cfg, client: client}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "board" }

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	res, err := c.client.Get(ctx, c.cfg.SourceID, c.cfg.PageURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	res.Body.Close()
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("parse board html: %w", err)}
	}

	base, err := url.Parse(c.cfg.PageURL)
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: err}
	}

	seen := map[string]bool{}
	var out []domain.RawPosting

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		abs := resolveURL(base, strings.TrimSpace(href))
		if abs == "" || !looksLikeJobLink(abs) {
			return
		}
		if seen[abs] {
			return
		}
		seen[abs] = true

		title := cleanAnchorText(a.Text())
		if looksLikeJunkTitle(title) {
			// hydration will recover the real title from the job page
			title = ""
		}

		out = append(out, domain.RawPosting{
			ExternalID: externalIDFromURL(abs),
			Title:      title,
			Company:    c.cfg.Company,
			URL:        abs,
		})
	})

	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_ = c.hydrate(ctx, &out[i])
	}

	// drop entries hydration could not give a title to; the normalizer
	// would reject them anyway
	kept := out[:0]
	for _, p := range out {
		if p.Title != "" {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func (c *Connector) hydrate(ctx context.Context, p *domain.RawPosting) error {
	res, err := c.client.Get(ctx, c.cfg.SourceID, p.URL, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return err
	}

	if p.Title == "" {
		p.Title = cleanAnchorText(doc.Find("h1").First().Text())
	}
	if loc := cleanAnchorText(doc.Find(".location").First().Text()); loc != "" {
		p.Location = loc
	}
	for _, sel := range []string{"#content", "article", "main"} {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if h, err := node.Html(); err == nil && strings.TrimSpace(h) != "" {
				p.DescriptionHTML = h
				break
			}
		}
	}
	return nil
}

func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func looksLikeJobLink(abs string) bool {
	low := strings.ToLower(abs)
	return strings.Contains(low, "/jobs/") || strings.Contains(low, "/careers/") || strings.Contains(low, "/job/") || strings.Contains(low, "/positions/")
}

// externalIDFromURL uses the last meaningful path segment as the stable id;
// boards without numeric ids still get something unique per posting.
func externalIDFromURL(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return abs
	}
	return segs[len(segs)-1]
}

func cleanAnchorText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func looksLikeJunkTitle(t string) bool {
	if t == "" {
		return true
	}
	l := strings.ToLower(t)
	return strings.Contains(l, "view") || strings.Contains(l, "apply") || strings.Contains(l, "learn more")
}
