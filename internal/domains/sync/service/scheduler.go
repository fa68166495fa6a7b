package service

import (
	"context"
	"net/http"
	"time"

	"lodge/config"
	"lodge/internal/domains/sync/model"
	"lodge/shared/failure"

	"github.com/rs/zerolog/log"
)

// Scheduler runs SyncAll on a fixed interval, starting with an immediate pass.
type Scheduler struct {
	sync     Sync
	interval time.Duration
}

func NewScheduler(sync Sync, interval time.Duration) *Scheduler {
	return &Scheduler{sync: sync, interval: interval}
}

// Run blocks until ctx is done. A non-positive interval disables scheduling and Run returns at once.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		log.Info().Msg("scheduled sync disabled")

		return
	}

	log.Info().Dur("interval", s.interval).Msg("scheduled sync started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.tick(ctx)

		select {
		case <-ctx.Done():
			log.Info().Msg("scheduled sync stopped")

			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.sync.SyncAll(ctx, model.TriggerScheduled); err != nil {
		if failure.Is(err, http.StatusConflict) {
			log.Info().Msg("skipping scheduled sync, another run holds the lock")

			return
		}

		log.Error().Err(err).Msg("scheduled sync failed")
	}
}

// ProvideScheduler builds the scheduler from SYNC_INTERVAL_MINUTES.
func ProvideScheduler(sync Sync, cfg *config.Config) *Scheduler {
	return NewScheduler(sync, time.Duration(cfg.Sync.IntervalMinutes)*time.Minute)
}
