package rss

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/connector"
)

const rssXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Jobs</title>
    <item>
      <guid>https://jobs.example.com/postings/42</guid>
      <title>Platform Engineer</title>
      <link>https://jobs.example.com/postings/42</link>
      <description>&lt;p&gt;Build the platform. $120k - $150k.&lt;/p&gt;</description>
      <pubDate>Fri, 01 Aug 2026 09:30:00 +0000</pubDate>
      <author>Acme Recruiting</author>
      <category>go</category>
      <category>platform</category>
    </item>
    <item>
      <title>Untracked Role</title>
      <link>https://jobs.example.com/postings/43</link>
      <description>No guid on this one.</description>
    </item>
  </channel>
</rss>`

const atomXML = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Jobs</title>
  <entry>
    <id>urn:uuid:9a3c-1</id>
    <title>Data Engineer</title>
    <link rel="alternate" href="https://jobs.example.com/postings/50"/>
    <summary>Pipelines.</summary>
    <published>2026-08-02T10:00:00Z</published>
    <author><name>Example Jobs</name></author>
    <category term="data"/>
  </entry>
</feed>`

func newTestConnector(url string) *Connector {
	return New(Config{SourceID: "feed-src", FeedURL: url, Company: "Fallback Co"},
		connector.NewClient(connector.NewHostLimiter(1000, 10)))
}

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchMapsRSSEntries(t *testing.T) {
	srv := serve(t, rssXML)
	postings, err := newTestConnector(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 2)

	p := postings[0]
	sum := sha256.Sum256([]byte("https://jobs.example.com/postings/42"))
	assert.Equal(t, hex.EncodeToString(sum[:]), p.ExternalID)
	assert.Equal(t, "Platform Engineer", p.Title)
	assert.Equal(t, "Acme Recruiting", p.Company)
	assert.Equal(t, "https://jobs.example.com/postings/42", p.URL)
	assert.Contains(t, p.DescriptionHTML, "Build the platform")
	assert.Equal(t, []string{"go", "platform"}, p.Tags)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, "2026-08-01T09:30:00Z", p.PostedAt.Format("2006-01-02T15:04:05Z"))

	// guid-less entries fall back to the link hash and the configured company
	q := postings[1]
	sum = sha256.Sum256([]byte("https://jobs.example.com/postings/43"))
	assert.Equal(t, hex.EncodeToString(sum[:]), q.ExternalID)
	assert.Equal(t, "Fallback Co", q.Company)
	assert.Nil(t, q.PostedAt)
}

func TestFetchMapsAtomEntries(t *testing.T) {
	srv := serve(t, atomXML)
	postings, err := newTestConnector(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 1)

	p := postings[0]
	sum := sha256.Sum256([]byte("urn:uuid:9a3c-1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), p.ExternalID)
	assert.Equal(t, "Data Engineer", p.Title)
	assert.Equal(t, "Example Jobs", p.Company)
	assert.Equal(t, "https://jobs.example.com/postings/50", p.URL)
	assert.Equal(t, "Pipelines.", p.DescriptionHTML)
	assert.Equal(t, []string{"data"}, p.Tags)
	require.NotNil(t, p.PostedAt)
}

func TestFetchRejectsUnknownFormats(t *testing.T) {
	srv := serve(t, `<html><body>not a feed</body></html>`)
	_, err := newTestConnector(srv.URL).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, connector.Unreachable, connector.KindOf(err))
}

func TestExternalIDStableAcrossFetches(t *testing.T) {
	a := externalID(entry{GUID: "urn:x:1", Link: "https://x.example/1"})
	b := externalID(entry{GUID: "urn:x:1", Link: "https://x.example/other"})
	assert.Equal(t, a, b, "the guid alone keys the entry")
	assert.NotEqual(t, a, externalID(entry{GUID: "urn:x:2"}))
	assert.Equal(t, externalID(entry{Title: "only title"}), externalID(entry{Title: "only title"}))
}

func TestParsePublishedFormats(t *testing.T) {
	require.NotNil(t, parsePublished("Fri, 01 Aug 2026 09:30:00 +0000"))
	require.NotNil(t, parsePublished("2026-08-02T10:00:00Z"))
	assert.Nil(t, parsePublished(""))
	assert.Nil(t, parsePublished("last tuesday"))
}
