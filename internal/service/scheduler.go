package service

import (
	"context"
	"time"

	"salesbridge/internal/constants"

	"github.com/sirupsen/logrus"
)

// CleanupStore removes records older than the retention window.
type CleanupStore interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) error
}

// Scheduler runs retention cleanup on a fixed interval, starting with
// one immediate pass.
type Scheduler struct {
	store         CleanupStore
	retentionDays int
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
}

func NewScheduler(store CleanupStore, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if retentionDays <= 0 {
		retentionDays = constants.DefaultRetentionDays
	}
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		store:         store,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called. One cleanup pass
// runs immediately so a restart never extends the retention window.
func (s *Scheduler) Start(ctx context.Context) {
	interval := time.Duration(s.intervalHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.WithField("interval", interval.String()).Info("Starting cleanup scheduler")
	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info("Cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

// Stop terminates Start. Must be called at most once.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retention_days", s.retentionDays).Info("Running retention cleanup")

	if err := s.store.CleanupOldRecords(ctx, s.retentionDays); err != nil {
		s.logger.WithError(err).Error("Retention cleanup failed")
		return
	}
	s.logger.Info("Retention cleanup completed")
}
