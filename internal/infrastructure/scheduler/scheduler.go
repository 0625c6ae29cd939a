package scheduler

import (
	"context"
	"fmt"
	"time"

	"outreach-service/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Job is one unit of scheduled work. ctx is cancelled when the scheduler stops.
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron expressions. A job that is still running when
// its next tick arrives is skipped for that tick.
type Scheduler struct {
	cron    *cron.Cron
	logger  logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewScheduler creates a new scheduler. timeout bounds each job run; zero means none.
func NewScheduler(logger logger.Logger, timeout time.Duration) *Scheduler {
	cronLogger := cronLogAdapter{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

// Add registers job under name on spec, e.g. "@every 1m" or "*/5 * * * *".
func (s *Scheduler) Add(name, spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := s.ctx
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("Scheduled job failed", "job", name, "error", err, "duration", time.Since(start))
			return
		}
		s.logger.Debug("Scheduled job finished", "job", name, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	s.logger.Info("Registered scheduled job", "job", name, "schedule", spec)
	return nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out, jobs still running")
	}
}

// cronLogAdapter routes cron's own messages to the service logger
type cronLogAdapter struct {
	logger logger.Logger
}

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug("cron: "+msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
