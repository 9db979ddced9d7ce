package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"spendhelm/internal/log"
)

const jobTimeout = 10 * time.Minute

// Scheduler runs the periodic worker jobs on a cron clock.
type Scheduler struct {
	cron   *cron.Cron
	logger *log.Logger
}

// cronLogger adapts log.Logger to cron.Logger.
type cronLogger struct{ l *log.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{log.FieldError, err}, keysAndValues...)...)
}

// NewScheduler registers the nightly aggregate rebuild on rebuildSpec and,
// when w mirrors to Sheets, a pending-mirror sweep every mirrorEvery.
// Overlapping runs of the same job are skipped.
func NewScheduler(w *AggregateWorker, rebuildSpec string, mirrorEvery time.Duration, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentWorker)
	adapter := cronLogger{l: logger}

	c := cron.New(
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)

	if _, err := c.AddFunc(rebuildSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := w.RebuildAll(ctx); err != nil {
			logger.Error("Scheduled aggregate rebuild failed", log.FieldError, err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule rebuild %q: %w", rebuildSpec, err)
	}

	if w.mirror != nil && mirrorEvery > 0 {
		spec := "@every " + mirrorEvery.String()
		if _, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			if _, err := w.ProcessPendingMirror(ctx, w.batchSize); err != nil {
				logger.Error("Scheduled mirror sweep failed", log.FieldError, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule mirror sweep: %w", err)
		}
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}
