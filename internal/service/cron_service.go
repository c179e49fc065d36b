package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type staleSweeper interface {
	SweepStale(ctx context.Context) (int64, error)
}

type exportCleaner interface {
	Cleanup(maxAge time.Duration) ([]string, error)
}

// CronConfig holds six-field (seconds first) schedules. An empty schedule disables the job.
type CronConfig struct {
	ClockSweepSchedule    string
	ExportCleanupSchedule string
	ExportMaxAge          time.Duration
	Location              *time.Location
	JobTimeout            time.Duration
}

// CronService runs the periodic maintenance jobs.
type CronService struct {
	cron    *cron.Cron
	clock   staleSweeper
	exports exportCleaner
	cfg     CronConfig
	logger  *zap.Logger
}

// NewCronService builds the scheduler without starting it.
func NewCronService(clock staleSweeper, exports exportCleaner, cfg CronConfig, logger *zap.Logger) *CronService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &CronService{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location)),
		clock:   clock,
		exports: exports,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "cron")),
	}
}

// Start registers the jobs and starts the scheduler.
func (s *CronService) Start() error {
	if s.clock != nil && s.cfg.ClockSweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ClockSweepSchedule, s.SweepStaleClockIns); err != nil {
			return fmt.Errorf("schedule clock sweep: %w", err)
		}
		s.logger.Info("scheduled stale clock-in sweep", zap.String("schedule", s.cfg.ClockSweepSchedule))
	}
	if s.exports != nil && s.cfg.ExportCleanupSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ExportCleanupSchedule, s.CleanupExports); err != nil {
			return fmt.Errorf("schedule export cleanup: %w", err)
		}
		s.logger.Info("scheduled export cleanup", zap.String("schedule", s.cfg.ExportCleanupSchedule))
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("cron stopped")
}

// SweepStaleClockIns flags sessions left open too long.
func (s *CronService) SweepStaleClockIns() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
	defer cancel()

	started := time.Now()
	flagged, err := s.clock.SweepStale(ctx)
	if err != nil {
		s.logger.Error("stale clock-in sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("stale clock-in sweep finished", zap.Int64("flagged", flagged), zap.Duration("took", time.Since(started)))
}

// CleanupExports removes expired export files.
func (s *CronService) CleanupExports() {
	removed, err := s.exports.Cleanup(s.cfg.ExportMaxAge)
	if err != nil {
		s.logger.Error("export cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("export cleanup finished", zap.Int("removed", len(removed)))
}
