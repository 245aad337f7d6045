// Package rss ingests job postings from generic RSS 2.0 and Atom 1.0 feeds.
// The format is auto-detected from the XML root element.
package rss

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID string
	FeedURL  string
	Company  string // fallback when entries carry no author
}

type Connector struct {
	cfg    Config
	client *connector.Client
}

func New(cfg Config, client *connector.Client) *Connector {
	return &Connector{cfg: cfg, client: client}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "rss" }

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	res, err := c.client.Get(ctx, c.cfg.SourceID, c.cfg.FeedURL, nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("read feed: %w", err)}
	}

	entries, err := parseFeed(body)
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: err}
	}

	out := make([]domain.RawPosting, 0, len(entries))
	for _, e := range entries {
		company := e.Author
		if company == "" {
			company = c.cfg.Company
		}
		out = append(out, domain.RawPosting{
			ExternalID:      externalID(e),
			Title:           e.Title,
			Company:         company,
			URL:             e.Link,
			DescriptionHTML: e.Description,
			Tags:            e.Categories,
			PostedAt:        parsePublished(e.Published),
		})
	}
	return out, nil
}

// entry is the common shape both feed dialects are reduced to.
type entry struct {
	GUID        string
	Title       string
	Link        string
	Description string
	Published   string
	Author      string
	Categories  []string
}

// externalID hashes the entry guid so arbitrary feed identifiers (URLs,
// urn:uuid values, permalinks) become uniform keys. Link and title are
// fallbacks for feeds without a guid.
func externalID(e entry) string {
	id := e.GUID
	if id == "" {
		id = e.Link
	}
	if id == "" {
		id = e.Title
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func parsePublished(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseFeed(data []byte) ([]entry, error) {
	switch detectFormat(data) {
	case "rss":
		return parseRSS(data)
	case "atom":
		return parseAtom(data)
	default:
		return nil, fmt.Errorf("unrecognized feed format (expected <rss> or <feed>)")
	}
}

// detectFormat reports the first element name after the XML declaration.
func detectFormat(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss", "rdf":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

type rssRoot struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string   `xml:"guid"`
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Author      string   `xml:"author"`
	Creator     string   `xml:"creator"` // dc:creator
	Categories  []string `xml:"category"`
}

func parseRSS(data []byte) ([]entry, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse rss feed: %w", err)
	}

	out := make([]entry, 0, len(root.Channel.Items))
	for _, item := range root.Channel.Items {
		author := strings.TrimSpace(item.Author)
		if author == "" {
			author = strings.TrimSpace(item.Creator)
		}
		out = append(out, entry{
			GUID:        strings.TrimSpace(item.GUID),
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: strings.TrimSpace(item.Description),
			Published:   strings.TrimSpace(item.PubDate),
			Author:      author,
			Categories:  trimAll(item.Categories),
		})
	}
	return out, nil
}

type atomRoot struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Categories []struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func parseAtom(data []byte) ([]entry, error) {
	var root atomRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}

	out := make([]entry, 0, len(root.Entries))
	for _, ae := range root.Entries {
		desc := strings.TrimSpace(ae.Content)
		if desc == "" {
			desc = strings.TrimSpace(ae.Summary)
		}
		published := strings.TrimSpace(ae.Published)
		if published == "" {
			published = strings.TrimSpace(ae.Updated)
		}
		var author string
		if len(ae.Authors) > 0 {
			author = strings.TrimSpace(ae.Authors[0].Name)
		}
		var cats []string
		for _, c := range ae.Categories {
			if t := strings.TrimSpace(c.Term); t != "" {
				cats = append(cats, t)
			}
		}
		out = append(out, entry{
			GUID:        strings.TrimSpace(ae.ID),
			Title:       strings.TrimSpace(ae.Title),
			Link:        atomEntryLink(ae.Links),
			Description: desc,
			Published:   published,
			Author:      author,
			Categories:  cats,
		})
	}
	return out, nil
}

// atomEntryLink prefers the alternate link, then any link with an href.
func atomEntryLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	for _, l := range links {
		if l.Href != "" {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
