package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/roster/internal/observability"
)

// ResetTokenCleaner clears reset tokens whose expiry has passed.
type ResetTokenCleaner interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper drops expired in-process entries and reports how many went.
type Sweeper interface {
	Sweep() int
}

// CleanupManager periodically clears expired password reset tokens and
// sweeps the in-process login counters.
type CleanupManager struct {
	cleaner  ResetTokenCleaner
	sweeper  Sweeper
	metrics  *observability.Metrics
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewCleanupManager creates a new cleanup manager. sweeper and metrics may be nil.
func NewCleanupManager(
	cleaner ResetTokenCleaner,
	sweeper Sweeper,
	metrics *observability.Metrics,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		cleaner:  cleaner,
		sweeper:  sweeper,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the periodic cleanup until ctx is cancelled or Stop is called.
// It blocks; run it in its own goroutine.
func (cm *CleanupManager) Start(ctx context.Context) {
	defer close(cm.done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup performs one pass.
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var cleared int64
	clear := func() error {
		var err error
		cleared, err = cm.cleaner.ClearExpiredResetTokens(cleanupCtx, cm.now())
		return err
	}

	var err error
	if cm.metrics != nil {
		err = cm.metrics.ObserveDB("clear_expired_reset_tokens", clear)
	} else {
		err = clear()
	}

	if err != nil {
		cm.logger.Error("failed to clear expired reset tokens", slog.Any("error", err))
		cm.record("error", 0, 0)
		return
	}

	swept := 0
	if cm.sweeper != nil {
		swept = cm.sweeper.Sweep()
	}

	if cleared > 0 || swept > 0 {
		cm.logger.Info("expired credential cleanup completed",
			slog.Int64("reset_tokens_cleared", cleared),
			slog.Int("login_counters_swept", swept))
	}
	cm.record("ok", cleared, swept)
}

func (cm *CleanupManager) record(result string, cleared int64, swept int) {
	if cm.metrics == nil {
		return
	}
	cm.metrics.JanitorRuns.WithLabelValues(result).Inc()
	cm.metrics.ResetsExpired.Add(float64(cleared))
	cm.metrics.CountersSwept.Add(float64(swept))
}

// Stop signals the cleanup manager to stop. It is safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

// Done is closed once Start has returned.
func (cm *CleanupManager) Done() <-chan struct{} {
	return cm.done
}
