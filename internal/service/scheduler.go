package service

import (
	"context"
	"sync"
	"time"

	"dashchat/internal/constants"
	"dashchat/internal/metrics"

	"github.com/sirupsen/logrus"
)

// RecordCleaner deletes records past their retention.
type RecordCleaner interface {
	CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error)
}

// Scheduler runs the retention cleanup on a fixed interval.
type Scheduler struct {
	cleaner       RecordCleaner
	intervalHours int
	logger        *logrus.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once

	mu            sync.RWMutex
	retentionDays int
}

func NewScheduler(cleaner RecordCleaner, retentionDays, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.CleanupSchedulerIntervalHours
	}
	return &Scheduler{
		cleaner:       cleaner,
		retentionDays: retentionDays,
		intervalHours: intervalHours,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.RunCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.RunCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// SetRetentionDays changes the retention applied by the next cleanup.
func (s *Scheduler) SetRetentionDays(days int) {
	if days <= 0 {
		return
	}
	s.mu.Lock()
	s.retentionDays = days
	s.mu.Unlock()
}

// RetentionDays returns the retention currently applied.
func (s *Scheduler) RetentionDays() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retentionDays
}

// RunCleanup deletes expired messages once.
func (s *Scheduler) RunCleanup(ctx context.Context) {
	days := s.RetentionDays()
	s.logger.WithField("retentionDays", days).Info("Running scheduled cleanup")

	deleted, err := s.cleaner.CleanupOldRecords(ctx, days)
	if err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old records")
		return
	}
	metrics.AddToCounter(metrics.MessagesCleanedUp, float64(deleted), nil, "Messages removed by retention cleanup")
	s.logger.WithField(LogFieldCount, deleted).Info("Successfully completed cleanup")
}
