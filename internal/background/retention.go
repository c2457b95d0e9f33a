package background

import (
	"context"
	"log/slog"
	"time"
)

// AttemptPurger removes attempt rows whose TTL has passed
type AttemptPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// EventPurger removes event rows past the retention horizon
type EventPurger interface {
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// RetentionManager periodically purges expired login attempts and aged-out
// security events. A failed sweep is logged and retried on the next tick.
type RetentionManager struct {
	attempts       AttemptPurger
	events         EventPurger
	eventRetention time.Duration
	interval       time.Duration
	logger         *slog.Logger
	stopCh         chan struct{}
}

// NewRetentionManager creates a new retention manager
func NewRetentionManager(
	attempts AttemptPurger,
	events EventPurger,
	eventRetention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *RetentionManager {
	return &RetentionManager{
		attempts:       attempts,
		events:         events,
		eventRetention: eventRetention,
		interval:       interval,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic purge task
func (rm *RetentionManager) Start(ctx context.Context) {
	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	rm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			rm.runSweep(ctx)
		case <-rm.stopCh:
			rm.logger.Info("retention manager stopped")
			return
		case <-ctx.Done():
			rm.logger.Info("retention manager context cancelled")
			return
		}
	}
}

// runSweep purges both tables under a bounded deadline
func (rm *RetentionManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attemptRows, err := rm.attempts.DeleteExpired(sweepCtx)
	if err != nil {
		rm.logger.Error("failed to purge expired login attempts", slog.Any("error", err))
	} else if attemptRows > 0 {
		rm.logger.Info("purged expired login attempts", slog.Int64("rows_deleted", attemptRows))
	}

	eventRows, err := rm.events.Cleanup(sweepCtx, time.Now().Add(-rm.eventRetention))
	if err != nil {
		rm.logger.Error("failed to purge aged security events", slog.Any("error", err))
	} else if eventRows > 0 {
		rm.logger.Info("purged aged security events", slog.Int64("rows_deleted", eventRows))
	}
}

// Stop signals the retention manager to stop
func (rm *RetentionManager) Stop() {
	close(rm.stopCh)
}
