package worker

import (
	"context"
	"log/slog"
	"time"

	"retrieval-engine/internal/metrics"
	"retrieval-engine/internal/usecase"
)

const refreshTimeout = 2 * time.Minute

// SnapshotWorker periodically recomputes the engagement snapshot
// generation. The first refresh runs immediately so queries have
// engagement data soon after startup.
type SnapshotWorker struct {
	aggregator *usecase.FeedbackAggregator
	interval   time.Duration
	logger     *slog.Logger
	stopChan   chan struct{}
}

func NewSnapshotWorker(aggregator *usecase.FeedbackAggregator, interval time.Duration, logger *slog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SnapshotWorker{
		aggregator: aggregator,
		interval:   interval,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

func (w *SnapshotWorker) Start() {
	w.logger.Info("Starting SnapshotWorker", "interval", w.interval)
	go w.run()
}

func (w *SnapshotWorker) Stop() {
	w.logger.Info("Stopping SnapshotWorker")
	close(w.stopChan)
}

func (w *SnapshotWorker) run() {
	w.refreshOnce()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.refreshOnce()
		}
	}
}

func (w *SnapshotWorker) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	start := time.Now()
	if err := w.aggregator.Refresh(ctx); err != nil {
		// Readers keep the previous generation.
		w.logger.Error("Snapshot refresh failed", "error", err)
		return
	}
	metrics.SnapshotRefreshDuration.Observe(time.Since(start).Seconds())
}
