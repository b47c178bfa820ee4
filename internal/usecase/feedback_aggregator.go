package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"retrieval-engine/internal/domain"
)

type snapshotTable struct {
	byChunk    map[uuid.UUID]domain.EngagementSnapshot
	computedAt time.Time
}

// FeedbackAggregator recomputes engagement snapshots on a schedule and
// publishes each generation with an atomic pointer swap. Queries read the
// previous generation without any locking while a recomputation runs.
type FeedbackAggregator struct {
	repo     domain.InteractionRepository
	halfLife time.Duration
	logger   *slog.Logger
	current  atomic.Pointer[snapshotTable]
}

// NewFeedbackAggregator creates the aggregator. halfLife is the decay
// applied to event age before aggregation, so stale popularity fades.
func NewFeedbackAggregator(repo domain.InteractionRepository, halfLife time.Duration, logger *slog.Logger) *FeedbackAggregator {
	a := &FeedbackAggregator{
		repo:     repo,
		halfLife: halfLife,
		logger:   logger,
	}
	a.current.Store(&snapshotTable{byChunk: map[uuid.UUID]domain.EngagementSnapshot{}})
	return a
}

// Snapshot returns the chunk's current engagement aggregate. It never
// blocks on a recomputation in progress.
func (a *FeedbackAggregator) Snapshot(chunkID uuid.UUID) (domain.EngagementSnapshot, bool) {
	table := a.current.Load()
	s, ok := table.byChunk[chunkID]
	return s, ok
}

// ComputedAt reports when the current generation was built.
func (a *FeedbackAggregator) ComputedAt() time.Time {
	return a.current.Load().computedAt
}

// Refresh recomputes all snapshots from the event log, persists them, and
// swaps the new generation in. Readers of the old generation are not
// interrupted.
func (a *FeedbackAggregator) Refresh(ctx context.Context) error {
	start := time.Now()

	snapshots, err := a.repo.AggregateDecayed(ctx, a.halfLife, start)
	if err != nil {
		return fmt.Errorf("failed to aggregate engagement: %w", err)
	}

	if err := a.repo.ReplaceSnapshots(ctx, snapshots); err != nil {
		return fmt.Errorf("failed to persist snapshots: %w", err)
	}

	table := &snapshotTable{
		byChunk:    make(map[uuid.UUID]domain.EngagementSnapshot, len(snapshots)),
		computedAt: start,
	}
	for _, s := range snapshots {
		table.byChunk[s.ChunkID] = s
	}
	a.current.Store(table)

	a.logger.Info("engagement_snapshots_refreshed",
		slog.Int("chunk_count", len(snapshots)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}
