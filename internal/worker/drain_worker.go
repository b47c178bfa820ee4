// Package worker hosts the background loops: the feedback drain, the
// engagement snapshot refresh, and periodic index maintenance.
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"retrieval-engine/internal/adapter/feedstream"
	"retrieval-engine/internal/domain"
)

const (
	drainPollInterval = 100 * time.Millisecond
	drainBlock        = 2 * time.Second
	drainTimeout      = 30 * time.Second
	initialBackoff    = 1 * time.Second
	maxBackoff        = 5 * time.Minute
)

// DrainWorker moves interaction events from the Redis stream into the
// append-only Postgres log. Inserts are paced so a feedback burst cannot
// starve query traffic of connections.
type DrainWorker struct {
	stream    *feedstream.RedisDriver
	repo      domain.InteractionRepository
	consumer  string
	batchSize int64
	limiter   *rate.Limiter
	logger    *slog.Logger
	stopChan  chan struct{}
	backoff   time.Duration
}

func NewDrainWorker(
	stream *feedstream.RedisDriver,
	repo domain.InteractionRepository,
	consumer string,
	batchSize int,
	batchesPerSec int,
	logger *slog.Logger,
) *DrainWorker {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchesPerSec <= 0 {
		batchesPerSec = 20
	}
	return &DrainWorker{
		stream:    stream,
		repo:      repo,
		consumer:  consumer,
		batchSize: int64(batchSize),
		limiter:   rate.NewLimiter(rate.Limit(batchesPerSec), 1),
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

func (w *DrainWorker) Start() {
	w.logger.Info("Starting DrainWorker", "consumer", w.consumer)
	go w.run()
}

func (w *DrainWorker) Stop() {
	w.logger.Info("Stopping DrainWorker")
	close(w.stopChan)
}

func (w *DrainWorker) run() {
	ctx := context.Background()
	if err := w.stream.EnsureGroup(ctx); err != nil {
		w.logger.Error("Failed to ensure consumer group", "error", err)
	}

	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.drainOnce()
			if w.backoff > 0 {
				ticker.Reset(w.backoff)
			} else {
				ticker.Reset(drainPollInterval)
			}
		}
	}
}

func (w *DrainWorker) drainOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	batch, err := w.stream.ReadBatch(ctx, w.consumer, w.batchSize, drainBlock)
	if err != nil {
		w.backoff = w.nextBackoff(w.backoff)
		w.logger.Warn("Drain read failed, backing off", "backoff", w.backoff, "error", err)
		return
	}
	if len(batch.MessageIDs) == 0 {
		w.backoff = 0
		return
	}

	if len(batch.Events) > 0 {
		if err := w.repo.InsertEvents(ctx, batch.Events); err != nil {
			// Leave the batch pending; the group redelivers it.
			w.backoff = w.nextBackoff(w.backoff)
			w.logger.Warn("Drain insert failed, backing off", "backoff", w.backoff, "error", err)
			return
		}
	}

	if err := w.stream.Ack(ctx, batch.MessageIDs...); err != nil {
		w.logger.Error("Failed to ack drained events", "error", err)
		return
	}

	w.backoff = 0
	w.logger.Debug("Drained interaction events", "count", len(batch.Events))
}

func (w *DrainWorker) nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return initialBackoff
	}
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
