package connector

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type ErrorKind string

const (
	Unreachable ErrorKind = "unreachable"
	AuthFailed  ErrorKind = "auth_failed"
	RateLimited ErrorKind = "rate_limited"
)

// Error is a run-fatal connector failure. RateLimited errors carry the
// server's retry-after hint when one was given; the scheduler folds it into
// its backoff.
type Error struct {
	Kind       ErrorKind
	SourceID   string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connector %s: %s: %v", e.SourceID, e.Kind, e.Err)
	}
	return fmt.Sprintf("connector %s: %s", e.SourceID, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the connector error kind, or "" for non-connector errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// RetryAfterHint returns the rate-limit hint attached to err, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind == RateLimited && ce.RetryAfter > 0 {
		return ce.RetryAfter, true
	}
	return 0, false
}

// ErrorFromStatus maps an HTTP response status to the connector taxonomy.
// Statuses below 400 map to nil.
func ErrorFromStatus(sourceID string, res *http.Response) error {
	switch {
	case res.StatusCode < 400:
		return nil
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return &Error{Kind: AuthFailed, SourceID: sourceID, Err: fmt.Errorf("status %d", res.StatusCode)}
	case res.StatusCode == http.StatusTooManyRequests:
		return &Error{
			Kind:       RateLimited,
			SourceID:   sourceID,
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")),
			Err:        fmt.Errorf("status %d", res.StatusCode),
		}
	default:
		return &Error{Kind: Unreachable, SourceID: sourceID, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
