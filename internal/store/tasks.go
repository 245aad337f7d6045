package store

import (
	"context"
	"time"

	"jobmatch-engine/internal/schedule"
)

// RecordTaskRun journals the latest state of a task. One row per task key;
// the journal is a snapshot, not a history.
func (d *DB) RecordTaskRun(ctx context.Context, run schedule.TaskRun) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO task_journal (task_kind, target_id, state, attempt, next_run_at, last_error, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_kind, target_id) DO UPDATE SET
  state = excluded.state,
  attempt = excluded.attempt,
  next_run_at = excluded.next_run_at,
  last_error = excluded.last_error,
  updated_at = excluded.updated_at;`,
		string(run.Kind), run.TargetID, string(run.State), run.Attempt,
		run.NextRunAt.UTC().Format(time.RFC3339), run.LastError, now,
	)
	if err != nil {
		return wrapUnavailable("record task run", err)
	}
	return nil
}

// ListTaskRuns returns the journal snapshot for the operational surface.
func (d *DB) ListTaskRuns(ctx context.Context) ([]schedule.TaskRun, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT task_kind, target_id, state, attempt, next_run_at, last_error
FROM task_journal
ORDER BY task_kind, target_id;`)
	if err != nil {
		return nil, wrapUnavailable("list task runs", err)
	}
	defer rows.Close()

	var out []schedule.TaskRun
	for rows.Next() {
		var run schedule.TaskRun
		var kind, state, nextRunAt string
		if err := rows.Scan(&kind, &run.TargetID, &state, &run.Attempt, &nextRunAt, &run.LastError); err != nil {
			return nil, wrapUnavailable("scan task run", err)
		}
		run.Kind = schedule.Kind(kind)
		run.State = schedule.State(state)
		if t, err := time.Parse(time.RFC3339, nextRunAt); err == nil {
			run.NextRunAt = t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable("iterate task runs", err)
	}
	return out, nil
}
