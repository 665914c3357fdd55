package ibkr

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the Flex import on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	log     zerolog.Logger
}

// NewScheduler creates an import scheduler.
func NewScheduler(service *Service, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		log:     log.With().Str("scheduler", "flex_import").Logger(),
	}
}

// Start registers the import job and starts the cron loop. An empty
// schedule disables scheduled imports; manual imports stay available.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		s.log.Info().Msg("Flex import schedule not set, scheduled imports disabled")
		return nil
	}
	if !s.service.flex.Configured() {
		s.log.Info().Msg("Flex credentials not set, scheduled imports disabled")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.service.ImportFlex(ctx); err != nil {
			s.log.Error().Err(err).Msg("Scheduled flex import failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid flex import schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", schedule).Msg("Flex import scheduled")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
