package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named periodic task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs maintenance jobs (backup, retrain) on cron schedules in UTC.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu   sync.Mutex
	jobs []string
}

func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Add registers a job. Jobs with an empty spec are skipped.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.log.Debug().Str("job", job.Name).Msg("no schedule, job disabled")
		return nil
	}
	_, err := s.cron.AddFunc(job.Spec, func() {
		start := time.Now()
		s.log.Info().Str("job", job.Name).Msg("job triggered")
		if err := job.Run(s.ctx); err != nil {
			s.log.Error().Err(err).Str("job", job.Name).Msg("job failed")
			return
		}
		s.log.Info().Str("job", job.Name).Dur("took", time.Since(start)).Msg("job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
	}
	s.mu.Lock()
	s.jobs = append(s.jobs, job.Name)
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log.Info().Strs("jobs", s.jobs).Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
