package board

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmatch-engine/internal/connector"
)

const listingHTML = `<html><body>
<a href="/careers/platform-engineer">Platform Engineer</a>
<a href="/careers/platform-engineer">Platform Engineer (again)</a>
<a href="/careers/data-engineer">View opening</a>
<a href="/about">About us</a>
<a href="#top">Top</a>
<a href="mailto:jobs@acme.example">Mail us</a>
</body></html>`

const jobHTML = `<html><body>
<h1>Data Engineer</h1>
<div class="location">Berlin, Germany</div>
<article><p>Pipelines all day.</p></article>
</body></html>`

func TestFetchDiscoversAndHydrates(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/careers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(listingHTML))
	})
	mux.HandleFunc("/careers/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(jobHTML))
	})

	c := New(Config{SourceID: "acme-site", PageURL: srv.URL + "/careers", Company: "Acme"},
		connector.NewClient(connector.NewHostLimiter(1000, 10)))

	postings, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, postings, 2, "duplicate and non-job links are dropped")

	assert.Equal(t, "platform-engineer", postings[0].ExternalID)
	assert.Equal(t, "Platform Engineer", postings[0].Title)
	assert.Equal(t, "Acme", postings[0].Company)
	assert.Equal(t, "Berlin, Germany", postings[0].Location)
	assert.Contains(t, postings[0].DescriptionHTML, "Pipelines all day.")

	// junk anchor text is replaced by the job page h1
	assert.Equal(t, "Data Engineer", postings[1].Title)
}

func TestLooksLikeJobLink(t *testing.T) {
	assert.True(t, looksLikeJobLink("https://x.example/jobs/1"))
	assert.True(t, looksLikeJobLink("https://x.example/positions/sre"))
	assert.False(t, looksLikeJobLink("https://x.example/blog/post"))
}

func TestExternalIDFromURL(t *testing.T) {
	assert.Equal(t, "sre-123", externalIDFromURL("https://x.example/careers/sre-123"))
	assert.Equal(t, "sre-123", externalIDFromURL("https://x.example/careers/sre-123/"))
}

func TestLooksLikeJunkTitle(t *testing.T) {
	assert.True(t, looksLikeJunkTitle("View opening"))
	assert.True(t, looksLikeJunkTitle("Apply now"))
	assert.True(t, looksLikeJunkTitle(""))
	assert.False(t, looksLikeJunkTitle("Platform Engineer"))
}
