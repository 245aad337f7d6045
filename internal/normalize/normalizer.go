package normalize

import (
	"fmt"
	"sort"
	"strings"

	"jobmatch-engine/internal/domain"
)

type ErrorKind string

const (
	MissingField     ErrorKind = "missing_field"
	MalformedContent ErrorKind = "malformed_content"
)

// Error reports why a single raw posting could not be normalized. It is
// per-item: callers count it and move on with the rest of the batch.
type Error struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("normalize: %s %s: %v", e.Kind, e.Field, e.Err)
	}
	return fmt.Sprintf("normalize: %s %s", e.Kind, e.Field)
}

func (e *Error) Unwrap() error { return e.Err }

// Normalizer maps source-specific raw postings into canonical JobRecords.
// It is a pure function of its inputs; the tokenizer is fixed at build time.
type Normalizer struct {
	tok Tokenizer
}

func New(tok Tokenizer) *Normalizer {
	return &Normalizer{tok: tok}
}

// Normalize validates and canonicalizes one raw posting. Display fields keep
// their original casing; everything destined for matching is lowercased.
func (n *Normalizer) Normalize(raw domain.RawPosting, sourceID string) (domain.JobRecord, error) {
	externalID := strings.TrimSpace(raw.ExternalID)
	if externalID == "" {
		return domain.JobRecord{}, &Error{Kind: MissingField, Field: "external_id"}
	}
	title := CleanText(raw.Title)
	if title == "" {
		return domain.JobRecord{}, &Error{Kind: MissingField, Field: "title"}
	}

	desc := CleanParagraphs(raw.DescriptionText)
	if desc == "" && raw.DescriptionHTML != "" {
		text, err := StripHTML(raw.DescriptionHTML)
		if err != nil {
			return domain.JobRecord{}, &Error{Kind: MalformedContent, Field: "description_html", Err: err}
		}
		desc = text
	}

	company := CleanText(raw.Company)
	if company == "" {
		company = "Unknown"
	}

	salaryText := strings.TrimSpace(raw.SalaryText)
	if salaryText == "" {
		salaryText = desc
	}
	salaryMin, salaryMax, _ := ExtractSalaryRange(salaryText)

	location := NormalizeLocation(raw.Location)
	workMode := InferWorkMode(location, title, desc)
	if raw.Remote {
		workMode = "Remote"
	}

	tags := map[string]bool{}
	for _, t := range n.tok.Tokenize(title + " " + desc) {
		tags[t] = true
	}
	for _, t := range raw.Tags {
		t = strings.ToLower(CleanText(t))
		if t != "" {
			tags[t] = true
		}
	}
	tagList := make([]string, 0, len(tags))
	for t := range tags {
		tagList = append(tagList, t)
	}
	sort.Strings(tagList)

	return domain.JobRecord{
		SourceID:        sourceID,
		ExternalID:      externalID,
		Title:           title,
		Company:         company,
		Location:        location,
		WorkMode:        workMode,
		DescriptionText: desc,
		URL:             strings.TrimSpace(raw.URL),
		Tags:            tagList,
		SalaryMin:       salaryMin,
		SalaryMax:       salaryMax,
		PostedAt:        raw.PostedAt,
	}, nil
}

// CleanParagraphs is CleanText applied per line, keeping paragraph breaks.
func CleanParagraphs(s string) string {
	if s == "" {
		return ""
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if t := CleanText(line); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, "\n")
}
