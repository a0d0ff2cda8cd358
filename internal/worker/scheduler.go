package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Sweeper reclaims reservations whose TTL expired.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// CatalogSyncer re-registers open coupons in the admission catalog.
type CatalogSyncer interface {
	SyncCatalog(ctx context.Context) (int, error)
}

// ScheduleConfig holds the cron specs for the scheduled jobs.
type ScheduleConfig struct {
	Sweep       string
	CatalogSync string
	// JobTimeout bounds a single run of any job.
	JobTimeout time.Duration
}

// Scheduler manages the cron jobs of the worker process.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	syncer  CatalogSyncer
	config  ScheduleConfig
	ctx     context.Context
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(sweeper Sweeper, syncer CatalogSyncer, cfg ScheduleConfig) *Scheduler {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	logger := log.With().Str("component", "scheduler").Logger()
	cronLogger := cron.PrintfLogger(&logger)
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:    c,
		sweeper: sweeper,
		syncer:  syncer,
		config:  cfg,
		ctx:     context.Background(),
	}
}

// Start registers the jobs and starts the cron scheduler. Jobs run with
// contexts derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	if _, err := s.cron.AddFunc(s.config.Sweep, s.SweepExpired); err != nil {
		return fmt.Errorf("schedule sweep job %q: %w", s.config.Sweep, err)
	}
	log.Info().Str("schedule", s.config.Sweep).Msg("scheduled reservation sweep job")

	if _, err := s.cron.AddFunc(s.config.CatalogSync, s.SyncCatalog); err != nil {
		return fmt.Errorf("schedule catalog sync job %q: %w", s.config.CatalogSync, err)
	}
	log.Info().Str("schedule", s.config.CatalogSync).Msg("scheduled catalog sync job")

	s.cron.Start()
	return nil
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// SweepExpired runs one reservation sweep.
func (s *Scheduler) SweepExpired() {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.JobTimeout)
	defer cancel()

	n, err := s.sweeper.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Int("reclaimed", n).Msg("reservation sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("reclaimed", n).Msg("reservation sweep finished")
	}
}

// SyncCatalog runs one catalog sync.
func (s *Scheduler) SyncCatalog() {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.JobTimeout)
	defer cancel()

	n, err := s.syncer.SyncCatalog(ctx)
	if err != nil {
		log.Error().Err(err).Int("synced", n).Msg("catalog sync failed")
		return
	}
	log.Debug().Int("synced", n).Msg("catalog sync finished")
}
