package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorderStub struct {
	startErr   error
	finishErr  error
	started    []string
	finished   []Status
	records    []int
	errMsgs    []string
	executions []Execution
}

func (r *recorderStub) StartJob(ctx context.Context, name string, startedAt time.Time) (int64, error) {
	if r.startErr != nil {
		return 0, r.startErr
	}
	r.started = append(r.started, name)
	return int64(len(r.started)), nil
}

func (r *recorderStub) FinishJob(ctx context.Context, id int64, status Status, records int, errMsg string) error {
	if r.finishErr != nil {
		return r.finishErr
	}
	r.finished = append(r.finished, status)
	r.records = append(r.records, records)
	r.errMsgs = append(r.errMsgs, errMsg)
	return nil
}

func (r *recorderStub) LastSuccessfulRun(ctx context.Context, name string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}

func (r *recorderStub) RecentJobs(ctx context.Context, name string, limit int) ([]Execution, error) {
	return r.executions, nil
}

func TestTracker_RecordsCompletedRun(t *testing.T) {
	rec := &recorderStub{}
	tr := NewTracker(rec)

	err := tr.Run(context.Background(), JobDailyIngest, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.started) != 1 || rec.started[0] != JobDailyIngest {
		t.Errorf("started = %v", rec.started)
	}
	if len(rec.finished) != 1 || rec.finished[0] != StatusCompleted || rec.records[0] != 42 {
		t.Errorf("finished = %v records = %v", rec.finished, rec.records)
	}
}

func TestTracker_RecordsFailedRun(t *testing.T) {
	rec := &recorderStub{}
	tr := NewTracker(rec)

	wantErr := errors.New("kite timeout")
	err := tr.Run(context.Background(), JobRecomputeAll, func(ctx context.Context) (int, error) {
		return 0, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run err = %v, want %v", err, wantErr)
	}
	if rec.finished[0] != StatusFailed || rec.errMsgs[0] != "kite timeout" {
		t.Errorf("finished = %v errMsgs = %v", rec.finished, rec.errMsgs)
	}
}

func TestTracker_BookkeepingErrorsDoNotFailTheJob(t *testing.T) {
	rec := &recorderStub{startErr: errors.New("db locked")}
	tr := NewTracker(rec)

	ran := false
	err := tr.Run(context.Background(), JobSeed, func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !ran {
		t.Error("job did not run despite recorder failure")
	}
}

func TestTracker_NilRecorderIsNoop(t *testing.T) {
	tr := NewTracker(nil)
	err := tr.Run(context.Background(), JobSeed, func(ctx context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := tr.LastSuccess(context.Background(), JobSeed); ok {
		t.Error("LastSuccess on nil recorder should report none")
	}
	if got := tr.Recent(context.Background(), JobSeed, 5); got != nil {
		t.Errorf("Recent = %v, want nil", got)
	}
}
