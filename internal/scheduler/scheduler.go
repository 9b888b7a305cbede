// Package scheduler runs the background jobs: the periodic refresh
// cycle and cache maintenance.
package scheduler

import (
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a schedulable unit of work
type Job interface {
	Run() error
	Name() string
}

// Scheduler wraps cron with logging and overlap protection. A slow
// refresh cycle must not stack a second run on top of itself.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins dispatching jobs on their schedules
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop halts dispatch and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job on a cron schedule ("@every 15m", "@daily",
// "0 9 * * MON-FRI"). Overlapping runs of the same job are skipped.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	var running atomic.Bool

	_, err := s.cron.AddFunc(schedule, func() {
		if !running.CompareAndSwap(false, true) {
			s.log.Warn().Str("job", job.Name()).Msg("Previous run still active, skipping")
			return
		}
		defer running.Store(false)

		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
			return
		}
		s.log.Debug().Str("job", job.Name()).Msg("Job completed")
	})
	if err != nil {
		return err
	}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run()
}
