package worker

import (
	"context"
	"log/slog"
	"time"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/index"
	"retrieval-engine/internal/metrics"
)

const ensureTimeout = 10 * time.Minute

// IndexWorker re-runs the index strategy walk on an interval, so a
// structure that could not be built at startup (extension missing,
// transient failure) is retried without a restart.
type IndexWorker struct {
	manager  *index.Manager
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
}

func NewIndexWorker(manager *index.Manager, interval time.Duration, logger *slog.Logger) *IndexWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &IndexWorker{
		manager:  manager,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (w *IndexWorker) Start() {
	w.logger.Info("Starting IndexWorker", "interval", w.interval)
	go w.run()
}

func (w *IndexWorker) Stop() {
	w.logger.Info("Stopping IndexWorker")
	close(w.stopChan)
}

func (w *IndexWorker) run() {
	w.ensureOnce()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.ensureOnce()
		}
	}
}

func (w *IndexWorker) ensureOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), ensureTimeout)
	defer cancel()

	w.manager.EnsureIndexes(ctx)

	for _, field := range []domain.VectorField{domain.FieldSmall, domain.FieldDense} {
		active := w.manager.ActiveStrategy(field)
		for _, strategy := range []string{"hnsw", "ivfflat", "seqscan"} {
			metrics.SetIndexStrategy(string(field), strategy, strategy == active)
		}
	}
}
