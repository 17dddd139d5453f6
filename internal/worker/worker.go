// Package worker schedules the six recurring workers named in §5: RSS
// fetch, enrichment, signal scoring, narrative detection, consolidation,
// and entity alerts. Each runs on its own cron cadence, single-instance
// (the scheduler skips a tick whose previous run is still in progress
// rather than stacking them), and shares the same document store and LLM cache the
// rest of the process uses.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one named, independently scheduled unit of recurring work.
type Job struct {
	Name string
	Spec string // 6-field cron expression (leading seconds field) or a descriptor such as "@every 5m"
	Run  func(ctx context.Context) error
}

// Scheduler wraps robfig/cron with structured logging around every job run.
// Jobs run under the base context given to Add; Stop does not cancel it, it
// stops dispatching and waits for in-flight jobs (per §9's "open at boot,
// drain on SIGTERM" lifecycle).
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New builds a Scheduler. Use UTC timestamps throughout; cron itself runs
// in the process's local time zone unless overridden.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:  log,
	}
}

// Add registers a job. baseCtx is the parent context passed to every run;
// callers typically pass a context cancelled on shutdown.
func (s *Scheduler) Add(baseCtx context.Context, job Job) error {
	_, err := s.cron.AddFunc(job.Spec, func() {
		start := time.Now()
		logger := s.log.With().Str("job", job.Name).Logger()
		logger.Debug().Msg("job_started")
		if err := job.Run(baseCtx); err != nil {
			logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("job_failed")
			return
		}
		logger.Debug().Dur("elapsed", time.Since(start)).Msg("job_completed")
	})
	return err
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop signals the scheduler to stop dispatching new runs and blocks until
// any in-flight job returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
