package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/aurano/internal/infrastructure/buffer"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Resyncer writes a user's latest state back to the primary backend.
type Resyncer interface {
	Resync(ctx context.Context, userID string) error
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval  time.Duration
	BatchSize int
}

// BufferProcessor re-syncs buffered snapshots once the primary backend is reachable again.
// Items are removed only by a successful resync.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	resyncer Resyncer
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	resyncer Resyncer,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		resyncer: resyncer,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", max(1, int(cfg.Interval.Seconds())))
	if _, err := bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	}); err != nil {
		logger.Error("failed to schedule buffer drain", zap.String("schedule", schedule), zap.Error(err))
	}

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain resyncs one batch of buffered users and returns how many were synced.
// Failures leave the snapshot in place for the next run.
func (bp *BufferProcessor) Drain(ctx context.Context) (int, error) {
	if bp == nil || bp.store == nil || bp.resyncer == nil {
		return 0, nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return 0, nil
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		if err := bp.resyncer.Resync(ctx, item.UserID); err != nil {
			bp.logger.Warn("failed to resync buffered snapshot",
				zap.String("user_id", item.UserID),
				zap.Time("buffered_at", item.Timestamp),
				zap.Error(err))
			continue
		}
		synced++
	}
	if synced > 0 {
		bp.logger.Info("buffered snapshots resynced", zap.Int("count", synced))
	}
	return synced, nil
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}
