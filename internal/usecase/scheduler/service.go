package scheduler

import (
	"context"

	"github.com/jasonlvhit/gocron"
	"github.com/sernascript/tollsync/internal/logger"
)

// PipelineFunc runs one scrape-ingest-migrate cycle
type PipelineFunc func(ctx context.Context) error

// Service runs the full pipeline once a day at a fixed local time
type Service struct {
	at   string
	run  PipelineFunc
	cron *gocron.Scheduler
}

// NewService creates a new scheduler. at is a "HH:MM" local time.
func NewService(at string, run PipelineFunc) *Service {
	return &Service{
		at:   at,
		run:  run,
		cron: gocron.NewScheduler(),
	}
}

// Start blocks and fires the pipeline daily. Job failures are logged and
// the schedule keeps running; the portal publishes the same window again
// the next day and ingestion is idempotent, so a missed run self-heals.
func (s *Service) Start(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().Str("at", s.at).Msg("Scheduler started")

	s.cron.Every(1).Day().At(s.at).Do(func() {
		if err := s.run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled pipeline run failed")
		}
	})

	stopped := s.cron.Start()
	select {
	case <-ctx.Done():
		s.cron.Clear()
	case <-stopped:
	}
}
