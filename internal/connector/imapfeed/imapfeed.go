package imapfeed

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"jobmatch-engine/internal/connector"
	"jobmatch-engine/internal/domain"
)

type Config struct {
	SourceID    string
	Host        string
	Port        int
	Username    string
	Mailbox     string
	MaxMessages int
	SubjectAny  []string
	// Password supplies the IMAP credential at fetch time (keyring-backed).
	Password func() (string, error)
}

// Connector turns a job-alert mailbox into a posting source: each unseen
// alert email becomes one raw posting, with title and company pulled from the
// subject line. Messages are fetched with BODY.PEEK so nothing is marked
// \Seen; dedup downstream makes re-reads harmless.
type Connector struct {
	cfg Config
}

func New(cfg Config) *Connector {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 50
	}
	return &Connector{cfg: cfg}
}

func (c *Connector) ID() string   { return c.cfg.SourceID }
func (c *Connector) Kind() string { return "imapfeed" }

func (c *Connector) Fetch(ctx context.Context) ([]domain.RawPosting, error) {
	password, err := c.cfg.Password()
	if err != nil {
		return nil, &connector.Error{Kind: connector.AuthFailed, SourceID: c.cfg.SourceID, Err: err}
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	client, err := imapclient.DialTLS(addr, &imapclient.Options{
		TLSConfig: &tls.Config{MinVersion: tls.VersionTLS12, ServerName: c.cfg.Host},
	})
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap dial tls: %w", err)}
	}
	defer client.Close()

	// best-effort close on cancellation; the deferred Close handles the rest
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	if err := client.Login(c.cfg.Username, password).Wait(); err != nil {
		return nil, &connector.Error{Kind: connector.AuthFailed, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap login: %w", err)}
	}

	if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap select %s: %w", c.cfg.Mailbox, err)}
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
		Since:   time.Now().AddDate(0, -3, 0),
	}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap uid search: %w", err)}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	// newest first
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}
	if len(uids) > c.cfg.MaxMessages {
		uids = uids[:c.cfg.MaxMessages]
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:      true,
		Envelope: true,
	})
	defer func() { _ = fetchCmd.Close() }()

	var out []domain.RawPosting
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil {
			return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap fetch collect: %w", err)}
		}
		if buf.Envelope == nil {
			continue
		}

		subject := strings.TrimSpace(buf.Envelope.Subject)
		if !subjectMatches(subject, c.cfg.SubjectAny) {
			continue
		}

		title, company := splitSubject(subject)
		if company == "" {
			company = senderName(buf.Envelope.From)
		}

		posting := domain.RawPosting{
			ExternalID: fmt.Sprintf("uid-%d", buf.UID),
			Title:      title,
			Company:    company,
		}
		if !buf.Envelope.Date.IsZero() {
			t := buf.Envelope.Date.UTC()
			posting.PostedAt = &t
		}
		out = append(out, posting)
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &connector.Error{Kind: connector.Unreachable, SourceID: c.cfg.SourceID, Err: fmt.Errorf("imap fetch close: %w", err)}
	}
	return out, nil
}

func subjectMatches(subject string, any []string) bool {
	if len(any) == 0 {
		return true
	}
	low := strings.ToLower(subject)
	for _, s := range any {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && strings.Contains(low, s) {
			return true
		}
	}
	return false
}

// splitSubject pulls "<title> at <company>" out of common alert subjects,
// shedding prefixes like "New job:" first.
func splitSubject(subject string) (title, company string) {
	s := subject
	for _, prefix := range []string{"new job:", "new jobs:", "job alert:", "new opening:"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	if idx := strings.LastIndex(s, " at "); idx > 0 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+4:])
	}
	return s, ""
}

func senderName(addrs []imap.Address) string {
	for _, a := range addrs {
		if a.Name != "" {
			return a.Name
		}
		if a.Mailbox != "" && a.Host != "" {
			return a.Mailbox + "@" + a.Host
		}
	}
	return ""
}
