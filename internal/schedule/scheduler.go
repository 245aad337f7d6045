package schedule

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"jobmatch-engine/internal/connector"
)

// Runner executes the work behind a task. It must honor ctx cancellation.
type Runner interface {
	RunTask(ctx context.Context, kind Kind, targetID string) error
}

// Journal persists task state transitions. Journal failures never block
// scheduling; they are logged and dropped.
type Journal interface {
	RecordTaskRun(ctx context.Context, run TaskRun) error
}

// AlertFunc is invoked for operational conditions: a task abandoned after
// exhausting its attempts, or repeated auth failures on a source.
type AlertFunc func(run TaskRun, reason string)

type Options struct {
	WorkerCount           int
	Backoff               Backoff
	MaxAttempts           int
	AuthFailureAlertAfter int
	// Clock and Rand are injectable for tests; nil means real time and
	// math/rand.
	Clock func() time.Time
	Rand  func() float64
}

// Scheduler owns all TaskRuns and enforces single-flight per task key: a
// trigger for a key that is already running coalesces into the running
// attempt instead of queueing a second one.
type Scheduler struct {
	runner  Runner
	journal Journal
	alert   AlertFunc
	log     *slog.Logger
	opts    Options

	mu        sync.Mutex
	tasks     map[Key]*TaskRun
	running   map[Key]bool
	authFails map[Key]int

	workCh chan Key
	wake   chan struct{}
	wg     sync.WaitGroup
}

func New(runner Runner, journal Journal, alert AlertFunc, log *slog.Logger, opts Options) *Scheduler {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 4
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.AuthFailureAlertAfter <= 0 {
		opts.AuthFailureAlertAfter = 3
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if alert == nil {
		alert = func(TaskRun, string) {}
	}
	return &Scheduler{
		runner:    runner,
		journal:   journal,
		alert:     alert,
		log:       log,
		opts:      opts,
		tasks:     make(map[Key]*TaskRun),
		running:   make(map[Key]bool),
		authFails: make(map[Key]int),
		workCh:    make(chan Key),
		wake:      make(chan struct{}, 1),
	}
}

// Register adds a periodic task. The first run is due immediately. Must be
// called before Start or from outside the dispatch loop; re-registering a key
// resets its state.
func (s *Scheduler) Register(kind Kind, targetID string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run := &TaskRun{
		Kind:      kind,
		TargetID:  targetID,
		State:     StatePending,
		Interval:  interval,
		NextRunAt: s.opts.Clock(),
	}
	s.tasks[run.Key()] = run
	s.poke()
}

// Trigger requests an immediate run. Returns false when the task is unknown
// or already running, in which case the request coalesces into the running
// attempt.
func (s *Scheduler) Trigger(kind Kind, targetID string) bool {
	key := Key{Kind: kind, TargetID: targetID}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tasks[key]
	if !ok || s.running[key] || run.State == StateAbandoned {
		return false
	}
	run.NextRunAt = s.opts.Clock()
	s.poke()
	return true
}

// Start launches the workers and the dispatch loop. It returns immediately;
// cancel ctx to stop, then Wait for in-flight tasks to drain.
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case key := <-s.workCh:
					s.execute(ctx, key)
				}
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatchLoop(ctx)
	}()
}

func (s *Scheduler) Wait() { s.wg.Wait() }

// Snapshot copies the current task table, sorted by key, for the status
// surface.
func (s *Scheduler) Snapshot() []TaskRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskRun, 0, len(s.tasks))
	for _, run := range s.tasks {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

func (s *Scheduler) dispatchLoop(ctx context.Context) {
	for {
		due, wait := s.collectDue()
		for _, key := range due {
			select {
			case <-ctx.Done():
				return
			case s.workCh <- key:
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// collectDue marks all due, not-running tasks as running and returns their
// keys plus how long to sleep until the next one comes due.
func (s *Scheduler) collectDue() ([]Key, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock()
	wait := time.Minute
	var due []Key
	for key, run := range s.tasks {
		if s.running[key] || run.State == StateAbandoned {
			continue
		}
		if !run.NextRunAt.After(now) {
			s.running[key] = true
			run.State = StateRunning
			s.journalLocked(*run)
			due = append(due, key)
			continue
		}
		if d := run.NextRunAt.Sub(now); d < wait {
			wait = d
		}
	}
	return due, wait
}

func (s *Scheduler) execute(ctx context.Context, key Key) {
	err := s.runner.RunTask(ctx, key.Kind, key.TargetID)
	s.complete(key, err)
	s.poke()
}

func (s *Scheduler) complete(key Key, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.tasks[key]
	if !ok {
		delete(s.running, key)
		return
	}
	delete(s.running, key)
	now := s.opts.Clock()

	switch {
	case err == nil:
		run.State = StateSucceeded
		run.Attempt = 0
		run.LastError = ""
		run.NextRunAt = now.Add(run.Interval)
		delete(s.authFails, key)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// a cancelled run is not a source failure: resume the normal
		// cadence without burning an attempt
		run.State = StateFailed
		run.LastError = LastErrorCancelled
		run.NextRunAt = now.Add(run.Interval)

	default:
		run.Attempt++
		run.LastError = err.Error()
		if run.Attempt >= s.opts.MaxAttempts {
			run.State = StateAbandoned
			s.log.Warn("task abandoned", "kind", key.Kind, "target", key.TargetID,
				"attempts", run.Attempt, "err", err)
			s.alert(*run, "max attempts exhausted")
			break
		}
		run.State = StateFailed
		delay := s.opts.Backoff.Delay(run.Attempt, s.opts.Rand)
		if hint, ok := connector.RetryAfterHint(err); ok && hint > delay {
			delay = hint
		}
		if connector.KindOf(err) == connector.AuthFailed {
			// credentials do not heal on their own; retry far less often
			// and page someone once the failure is clearly persistent
			if d := 4 * delay; d > delay {
				delay = d
			}
			s.authFails[key]++
			if s.authFails[key] == s.opts.AuthFailureAlertAfter {
				s.alert(*run, "repeated auth failures")
			}
		}
		run.NextRunAt = now.Add(delay)
		s.log.Warn("task failed", "kind", key.Kind, "target", key.TargetID,
			"attempt", run.Attempt, "retry_in", delay, "err", err)
	}

	s.journalLocked(*run)
}

// journalLocked is called with s.mu held; it uses a short background context
// so a slow journal cannot stall shutdown.
func (s *Scheduler) journalLocked(run TaskRun) {
	if s.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.journal.RecordTaskRun(jctx, run); err != nil {
		s.log.Warn("task journal write failed", "kind", run.Kind, "target", run.TargetID, "err", err)
	}
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
