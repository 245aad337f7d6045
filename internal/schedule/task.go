package schedule

import "time"

type Kind string

const (
	KindIngestSource   Kind = "ingestSource"
	KindRescoreProfile Kind = "rescoreProfile"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	// StateAbandoned is terminal: the attempt cap was hit and the task is
	// surfaced as an operational failure instead of retried.
	StateAbandoned State = "abandoned"
)

// LastErrorCancelled marks a run that failed because it was cancelled, so
// operators can tell a shutdown from a broken source.
const LastErrorCancelled = "cancelled"

// Key identifies a task for the single-flight rule: at most one running
// TaskRun per key at any time.
type Key struct {
	Kind     Kind
	TargetID string
}

// TaskRun is the scheduling unit. It is owned exclusively by the Scheduler;
// the coordinator only reports outcomes back.
type TaskRun struct {
	Kind      Kind
	TargetID  string
	State     State
	Attempt   int
	Interval  time.Duration
	NextRunAt time.Time
	LastError string
}

func (t TaskRun) Key() Key {
	return Key{Kind: t.Kind, TargetID: t.TargetID}
}
