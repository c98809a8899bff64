// Package scheduler drives the periodic sync jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is one periodic unit of work: run, sleep Interval, repeat.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each registered job in its own run-then-sleep loop for
// the life of the process. The loop structure itself guarantees that two
// iterations of the same job never overlap; distinct jobs are
// independent and may run at the same time.
//
// A failing iteration is logged and the loop sleeps as usual — errors
// never terminate scheduling. The next iteration is the retry.
type Scheduler struct {
	jobs []Job
	wg   sync.WaitGroup
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one loop per job. Each job runs immediately, then every
// Interval, until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}
}

// Wait blocks until every job loop has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		started := time.Now()
		log.Info().Str("job", job.Name).Msg("scheduler: job started")

		if err := job.Run(ctx); err != nil {
			log.Error().Err(err).Str("job", job.Name).Msg("scheduler: job failed")
		} else {
			log.Info().
				Str("job", job.Name).
				Dur("took", time.Since(started)).
				Msg("scheduler: job finished")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(job.Interval):
		}
	}
}
