package service

import (
	"context"
	"sync"
	"time"

	"dashchat/internal/metrics"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
)

// StaleMessageCounter reports messages that have not progressed through delivery.
type StaleMessageCounter interface {
	CountStaleMessages(ctx context.Context, status models.DeliveryStatus, cutoff time.Time) (int, error)
	CountMessagesByStatus(ctx context.Context) (map[models.DeliveryStatus]int, error)
}

// DeliveryMonitor periodically publishes per-status gauges and warns about
// messages stuck in sent.
type DeliveryMonitor struct {
	db            StaleMessageCounter
	checkInterval time.Duration
	logger        *logrus.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once

	mu             sync.RWMutex
	staleThreshold time.Duration
}

func NewDeliveryMonitor(db StaleMessageCounter, checkInterval, staleThreshold time.Duration, logger *logrus.Logger) *DeliveryMonitor {
	return &DeliveryMonitor{
		db:             db,
		checkInterval:  checkInterval,
		staleThreshold: staleThreshold,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

func (m *DeliveryMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	m.logger.WithFields(logrus.Fields{
		"check_interval":  m.checkInterval,
		"stale_threshold": m.threshold(),
	}).Info("Starting delivery monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *DeliveryMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// SetStaleThreshold changes the threshold used by the next check.
func (m *DeliveryMonitor) SetStaleThreshold(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.staleThreshold = d
	m.mu.Unlock()
}

func (m *DeliveryMonitor) threshold() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.staleThreshold
}

// Check runs one monitoring pass.
func (m *DeliveryMonitor) Check(ctx context.Context) {
	threshold := m.threshold()
	count, err := m.db.CountStaleMessages(ctx, models.DeliveryStatusSent, time.Now().Add(-threshold))
	if err != nil {
		m.logger.WithError(err).Error("Failed to check for stale messages")
		return
	}
	metrics.SetGauge(metrics.StaleMessages, float64(count), nil, "Messages stuck in sent status")
	if count > 0 {
		m.logger.WithFields(logrus.Fields{
			"stale_count": count,
			"threshold":   threshold,
		}).Warn("Messages stuck in 'sent' status without delivery confirmation")
	}

	counts, err := m.db.CountMessagesByStatus(ctx)
	if err != nil {
		m.logger.WithError(err).Warn("Failed to count messages by status")
		return
	}
	for _, status := range models.AllDeliveryStatuses {
		metrics.SetGauge(metrics.MessagesByStatus, float64(counts[status]), map[string]string{
			LogFieldStatus: string(status),
		}, "Stored messages by delivery status")
	}
}
