package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tahahayali/type-int--disasterRecovery/internal/buffer"
	"github.com/tahahayali/type-int--disasterRecovery/internal/models"
	"github.com/tahahayali/type-int--disasterRecovery/internal/repository"
)

// FlushScheduler periodically drains the location buffer into the
// persistent store. The buffer-to-store transfer is at-least-once: a failed
// bulk insert restores the drained samples and the next tick retries them,
// so the history table may see duplicate rows.
type FlushScheduler struct {
	store    repository.RecordStore
	buffer   *buffer.LocationBuffer
	interval time.Duration
	logger   *zap.Logger
}

// NewFlushScheduler creates a new flush scheduler.
func NewFlushScheduler(store repository.RecordStore, buf *buffer.LocationBuffer, interval time.Duration, logger *zap.Logger) *FlushScheduler {
	return &FlushScheduler{
		store:    store,
		buffer:   buf,
		interval: interval,
		logger:   logger,
	}
}

// Start flushes on every tick until ctx is cancelled. Flush failures are
// logged, never surfaced to request callers.
func (s *FlushScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Flush scheduler started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			if n := s.buffer.Size(); n > 0 {
				s.logger.Warn("Shutting down with unflushed samples", zap.Int("buffered", n))
			}
			s.logger.Info("Flush scheduler stopped")
			return
		case <-ticker.C:
			_, _ = s.FlushOnce(ctx)
		}
	}
}

// FlushOnce drains the buffer and persists the drained samples with
// RecordedTime set to the flush time. On failure every drained sample goes
// back into the buffer, except for devices that took a newer Put in the
// meantime.
func (s *FlushScheduler) FlushOnce(ctx context.Context) (int, error) {
	drained := s.buffer.Drain()
	if len(drained) == 0 {
		return 0, nil
	}

	flushTime := time.Now().UTC()
	samples := make([]models.LocationSample, 0, len(drained))
	for _, sample := range drained {
		sample.RecordedTime = flushTime
		samples = append(samples, sample)
	}

	n, err := s.store.BulkInsertLocations(ctx, samples)
	if err != nil {
		s.buffer.Restore(drained)
		s.logger.Error("Flush failed, samples restored",
			zap.Int("count", len(drained)),
			zap.Error(err),
		)
		return 0, err
	}

	s.logger.Info("Flushed location samples", zap.Int("count", n))
	return n, nil
}
