package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stock-analyzer/internal/jobs"
)

// StartJob inserts a RUNNING job_executions row and returns its id.
func (s *Store) StartJob(ctx context.Context, name string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_executions (job_name, status, started_at)
		VALUES (?, ?, ?)
	`, name, string(jobs.StatusRunning), startedAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite start job %s: %w", name, err)
	}
	return res.LastInsertId()
}

// FinishJob marks a job_executions row complete.
func (s *Store) FinishJob(ctx context.Context, id int64, status jobs.Status, records int, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_executions
		SET status = ?, finished_at = ?, records = ?, error = ?
		WHERE id = ?
	`, string(status), time.Now().Unix(), records, nullableString(errMsg), id)
	if err != nil {
		return fmt.Errorf("sqlite finish job %d: %w", id, err)
	}
	return nil
}

// LastSuccessfulRun returns the start time of the most recent COMPLETED
// execution of a job. The second return is false when none exists.
func (s *Store) LastSuccessfulRun(ctx context.Context, name string) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(started_at) FROM job_executions
		WHERE job_name = ? AND status = ?
	`, name, string(jobs.StatusCompleted)).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sqlite last run %s: %w", name, err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// RecentJobs returns the latest executions of a job, newest first.
func (s *Store) RecentJobs(ctx context.Context, name string, limit int) ([]jobs.Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_name, status, started_at, finished_at, records, error
		FROM job_executions
		WHERE job_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite recent jobs %s: %w", name, err)
	}
	defer rows.Close()

	var out []jobs.Execution
	for rows.Next() {
		var (
			e          jobs.Execution
			status     string
			startedAt  int64
			finishedAt sql.NullInt64
			errMsg     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Name, &status, &startedAt, &finishedAt, &e.Records, &errMsg); err != nil {
			return nil, fmt.Errorf("sqlite scan job: %w", err)
		}
		e.Status = jobs.Status(status)
		e.StartedAt = time.Unix(startedAt, 0).UTC()
		if finishedAt.Valid {
			t := time.Unix(finishedAt.Int64, 0).UTC()
			e.FinishedAt = &t
		}
		e.Error = errMsg.String
		out = append(out, e)
	}
	return out, rows.Err()
}
