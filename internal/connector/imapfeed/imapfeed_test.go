package imapfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emersion/go-imap/v2"
)

func TestSubjectMatches(t *testing.T) {
	assert.True(t, subjectMatches("anything", nil))
	assert.True(t, subjectMatches("New Job: SRE at Acme", []string{"new job"}))
	assert.True(t, subjectMatches("Weekly digest", []string{"job alert", "digest"}))
	assert.False(t, subjectMatches("Invoice #42", []string{"new job", "job alert"}))
	assert.False(t, subjectMatches("whatever", []string{"  ", ""}), "blank filter entries never match")
}

func TestSplitSubject(t *testing.T) {
	title, company := splitSubject("New job: Platform Engineer at Acme")
	assert.Equal(t, "Platform Engineer", title)
	assert.Equal(t, "Acme", company)

	title, company = splitSubject("Job Alert: SRE")
	assert.Equal(t, "SRE", title)
	assert.Empty(t, company)

	title, company = splitSubject("Senior Engineer at Big Corp at Large")
	assert.Equal(t, "Senior Engineer at Big Corp", title)
	assert.Equal(t, "Large", company, "the last ' at ' splits")

	title, company = splitSubject("Plain subject")
	assert.Equal(t, "Plain subject", title)
	assert.Empty(t, company)
}

func TestSenderName(t *testing.T) {
	assert.Equal(t, "Acme Jobs", senderName([]imap.Address{{Name: "Acme Jobs", Mailbox: "jobs", Host: "acme.example"}}))
	assert.Equal(t, "jobs@acme.example", senderName([]imap.Address{{Mailbox: "jobs", Host: "acme.example"}}))
	assert.Empty(t, senderName(nil))
}
