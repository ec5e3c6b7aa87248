// Package jobs records scheduled job executions so that operators can see
// when the last ingest or recompute ran and whether it succeeded.
package jobs

import (
	"context"
	"log"
	"time"
)

// Status is the lifecycle state of one job execution.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Well-known job names.
const (
	JobDailyIngest  = "daily_ingest"
	JobRecomputeAll = "recompute_all"
	JobSeed         = "seed"
)

// Execution is one recorded run of a named job.
type Execution struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Records    int        `json:"records"`
	Error      string     `json:"error,omitempty"`
}

// Recorder persists job executions.
type Recorder interface {
	StartJob(ctx context.Context, name string, startedAt time.Time) (int64, error)
	FinishJob(ctx context.Context, id int64, status Status, records int, errMsg string) error
	LastSuccessfulRun(ctx context.Context, name string) (time.Time, bool, error)
	RecentJobs(ctx context.Context, name string, limit int) ([]Execution, error)
}

// Tracker wraps a Recorder with start/finish helpers that never fail the
// job they observe: bookkeeping errors are logged and swallowed.
type Tracker struct {
	rec Recorder
}

// NewTracker creates a Tracker. A nil Recorder yields a no-op tracker.
func NewTracker(rec Recorder) *Tracker {
	return &Tracker{rec: rec}
}

// Run executes fn under bookkeeping: a RUNNING row before, COMPLETED or
// FAILED after. fn's record count and error are persisted alongside.
func (t *Tracker) Run(ctx context.Context, name string, fn func(ctx context.Context) (int, error)) error {
	var id int64
	if t.rec != nil {
		var err error
		id, err = t.rec.StartJob(ctx, name, time.Now().UTC())
		if err != nil {
			log.Printf("[jobs] %s: record start: %v", name, err)
			id = 0
		}
	}

	records, runErr := fn(ctx)

	if t.rec != nil && id != 0 {
		status, errMsg := StatusCompleted, ""
		if runErr != nil {
			status, errMsg = StatusFailed, runErr.Error()
		}
		if err := t.rec.FinishJob(context.WithoutCancel(ctx), id, status, records, errMsg); err != nil {
			log.Printf("[jobs] %s: record finish: %v", name, err)
		}
	}
	return runErr
}

// LastSuccess returns the start time of the last COMPLETED execution.
func (t *Tracker) LastSuccess(ctx context.Context, name string) (time.Time, bool) {
	if t.rec == nil {
		return time.Time{}, false
	}
	ts, ok, err := t.rec.LastSuccessfulRun(ctx, name)
	if err != nil {
		log.Printf("[jobs] %s: last run lookup: %v", name, err)
		return time.Time{}, false
	}
	return ts, ok
}

// Recent returns the latest executions of a job, newest first.
func (t *Tracker) Recent(ctx context.Context, name string, limit int) []Execution {
	if t.rec == nil {
		return nil
	}
	out, err := t.rec.RecentJobs(ctx, name, limit)
	if err != nil {
		log.Printf("[jobs] %s: recent lookup: %v", name, err)
		return nil
	}
	return out
}
