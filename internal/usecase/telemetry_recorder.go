package usecase

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"retrieval-engine/internal/domain"
)

const telemetryWriteTimeout = 5 * time.Second

// TelemetryRecorder writes query outcome records and sampled feature
// snapshots. All writes happen on detached goroutines with their own
// deadline so the response path never waits on telemetry.
type TelemetryRecorder struct {
	repo       domain.TelemetryRepository
	sampleRate float64
	logger     *slog.Logger
}

// NewTelemetryRecorder creates a recorder. sampleRate bounds feature
// snapshot storage cost: only that fraction of queries is persisted.
func NewTelemetryRecorder(repo domain.TelemetryRepository, sampleRate float64, logger *slog.Logger) *TelemetryRecorder {
	return &TelemetryRecorder{
		repo:       repo,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// RecordQuery persists one performance record, asynchronously.
func (t *TelemetryRecorder) RecordQuery(rec domain.QueryPerformanceRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryWriteTimeout)
		defer cancel()
		if err := t.repo.InsertPerformanceRecord(ctx, &rec); err != nil {
			t.logger.Warn("performance_record_write_failed",
				slog.String("query_hash", rec.QueryHash),
				slog.String("error", err.Error()))
		}
	}()
}

// MaybeRecordSnapshot persists the feature snapshot when this query falls
// inside the sampling rate.
func (t *TelemetryRecorder) MaybeRecordSnapshot(snap domain.FeatureSnapshot) {
	if t.sampleRate <= 0 || rand.Float64() >= t.sampleRate {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryWriteTimeout)
		defer cancel()
		if err := t.repo.InsertFeatureSnapshot(ctx, &snap); err != nil {
			t.logger.Warn("feature_snapshot_write_failed",
				slog.String("query_hash", snap.QueryHash),
				slog.String("error", err.Error()))
		}
	}()
}
