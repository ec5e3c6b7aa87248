// Package scheduler runs the daily end-of-day pipeline: after the market
// closes on each trading day, ingest the session's bars and recompute
// indicators across the universe.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"stock-analyzer/internal/ingest"
	"stock-analyzer/internal/jobs"
	"stock-analyzer/internal/logger"
	"stock-analyzer/internal/markethours"
	"stock-analyzer/internal/notification"
	"stock-analyzer/internal/recompute"
)

// DefaultCronSpec fires at 7 PM IST on weekdays, well after the 3:30 PM
// close and the exchange's EOD data settlement.
const DefaultCronSpec = "0 19 * * MON-FRI"

// Config tunes the scheduler.
type Config struct {
	CronSpec string // default: DefaultCronSpec
}

// RunReport is what one pipeline run produced, for broadcast to observers.
type RunReport struct {
	TradingDay string             `json:"trading_day"`
	Ingest     *ingest.Result     `json:"ingest,omitempty"`
	Recompute  *recompute.Summary `json:"recompute,omitempty"`
	Err        string             `json:"error,omitempty"`
}

// Scheduler wires cron to the ingest and recompute stages.
type Scheduler struct {
	cron     *cron.Cron
	ingestor *ingest.Ingestor
	orch     *recompute.Orchestrator
	tracker  *jobs.Tracker
	notifier notification.Notifier
	onReport func(RunReport)
}

// New creates a Scheduler. notifier and onReport may be nil.
func New(ingestor *ingest.Ingestor, orch *recompute.Orchestrator, tracker *jobs.Tracker) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(markethours.IST)),

		ingestor: ingestor,
		orch:     orch,
		tracker:  tracker,
	}
}

// WithNotifier sets the alert notifier for failed runs.
func (s *Scheduler) WithNotifier(n notification.Notifier) *Scheduler {
	s.notifier = n
	return s
}

// WithReportHook sets a callback invoked with every run's report.
func (s *Scheduler) WithReportHook(fn func(RunReport)) *Scheduler {
	s.onReport = fn
	return s
}

// Start registers the daily job and starts cron. Returns after scheduling;
// job runs happen on cron's goroutine.
func (s *Scheduler) Start(ctx context.Context, cfg Config) error {
	spec := cfg.CronSpec
	if spec == "" {
		spec = DefaultCronSpec
	}

	_, err := s.cron.AddFunc(spec, func() {
		now := time.Now()
		if !markethours.IsTradingDay(now) {
			log.Printf("[scheduler] %s is not a trading day, skipping", now.In(markethours.IST).Format("2006-01-02"))
			return
		}
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron spec %q: %w", spec, err)
	}

	s.cron.Start()
	log.Printf("[scheduler] daily pipeline scheduled (%s, IST)", spec)
	return nil
}

// RunOnce executes the full pipeline immediately: ingest bars for the last
// completed trading day, then recompute all indicators. Used by cron and by
// the manual API trigger.
func (s *Scheduler) RunOnce(ctx context.Context) RunReport {
	tradingDay := markethours.LastCompletedTradingDay(time.Now())
	report := RunReport{TradingDay: tradingDay.Format("2006-01-02")}
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("pipeline", time.Now()))
	log.Printf("[scheduler] pipeline run for trading day %s (trace %s)", report.TradingDay, logger.TraceID(ctx))

	err := s.tracker.Run(ctx, jobs.JobDailyIngest, func(ctx context.Context) (int, error) {
		res, err := s.ingestor.Run(ctx, tradingDay)
		report.Ingest = res
		if err != nil {
			return 0, err
		}
		if len(res.Failures) > 0 {
			return res.Bars, fmt.Errorf("%d symbols failed to ingest", len(res.Failures))
		}
		return res.Bars, nil
	})
	if err != nil && report.Ingest == nil {
		// Total ingest failure: still recompute, stored history is intact.
		report.Err = err.Error()
	}

	recErr := s.tracker.Run(ctx, jobs.JobRecomputeAll, func(ctx context.Context) (int, error) {
		summary, err := s.orch.RecomputeAll(ctx)
		report.Recompute = summary
		if err != nil {
			return 0, err
		}
		return summary.SufficientData, nil
	})
	if recErr != nil {
		report.Err = recErr.Error()
		s.alertFailure(ctx, report.TradingDay, recErr)
	} else if err != nil {
		s.alertFailure(ctx, report.TradingDay, err)
	}

	if s.onReport != nil {
		s.onReport(report)
	}
	return report
}

func (s *Scheduler) alertFailure(ctx context.Context, tradingDay string, err error) {
	if s.notifier == nil {
		return
	}
	alert := notification.Alert{
		Level:   notification.AlertCritical,
		Title:   "Daily pipeline failure",
		Message: fmt.Sprintf("trading day %s: %v", tradingDay, err),
	}
	if nerr := s.notifier.Send(ctx, alert); nerr != nil {
		log.Printf("[scheduler] notify: %v", nerr)
	}
}

// Stop stops cron and waits for a running job to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Printf("[scheduler] stopped")
}
