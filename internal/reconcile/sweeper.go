// Package reconcile re-dispatches pending tasks of processing jobs that have
// not changed for a while, covering a dispatcher that stopped halfway.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"contentfabric/internal/domain"
	"contentfabric/internal/infra"
)

// Requeuer enqueues the pending tasks of a job again.
type Requeuer interface {
	RequeuePending(ctx context.Context, g *domain.Generation) (int, error)
}

// Report summarises one sweep.
type Report struct {
	Jobs     int
	Requeued int
}

// Sweeper finds stale processing jobs and hands them to a Requeuer.
type Sweeper struct {
	generations domain.GenerationRepository
	requeuer    Requeuer
	staleAfter  time.Duration
	now         func() time.Time
	logger      infra.Logger
	cron        *cron.Cron
}

func NewSweeper(generations domain.GenerationRepository, requeuer Requeuer, staleAfter time.Duration, logger infra.Logger) *Sweeper {
	return &Sweeper{
		generations: generations,
		requeuer:    requeuer,
		staleAfter:  staleAfter,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger,
		cron:        cron.New(),
	}
}

// Sweep runs one pass.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	var rep Report
	stale, err := s.generations.ListStale(ctx, domain.GenerationStatusProcessing, s.now().Add(-s.staleAfter))
	if err != nil {
		return rep, fmt.Errorf("list stale generations: %w", err)
	}
	for i := range stale {
		n, err := s.requeuer.RequeuePending(ctx, &stale[i])
		if err != nil {
			return rep, fmt.Errorf("requeue %s: %w", stale[i].ID, err)
		}
		rep.Jobs++
		rep.Requeued += n
	}
	s.logger.Info().Int("jobs", rep.Jobs).Int("requeued", rep.Requeued).Msg("reconcile: sweep finished")
	return rep, nil
}

// Start schedules Sweep with a standard cron spec such as "*/5 * * * *" or
// "@every 10m".
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error().Err(err).Msg("reconcile: sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Dur("stale_after", s.staleAfter).Msg("reconcile: scheduler started")
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
