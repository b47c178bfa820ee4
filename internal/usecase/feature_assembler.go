package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"retrieval-engine/internal/domain"
)

// SnapshotSource exposes the current engagement snapshot generation.
// Lookups never block: readers see the previous generation until the
// aggregator swaps in a new one.
type SnapshotSource interface {
	Snapshot(chunkID uuid.UUID) (domain.EngagementSnapshot, bool)
}

// FeatureAssembler merges static chunk signals, the engagement snapshot,
// and decoded enrichment into one feature vector per candidate.
type FeatureAssembler interface {
	Assemble(ctx context.Context, tenantID uuid.UUID, candidates []domain.Candidate) ([]domain.FeatureVector, error)
}

type featureAssembler struct {
	chunkRepo   domain.ChunkRepository
	snapshots   SnapshotSource
	parallelism int
	logger      *slog.Logger
}

// NewFeatureAssembler creates a feature assembler with a bounded
// per-candidate fan-out.
func NewFeatureAssembler(
	chunkRepo domain.ChunkRepository,
	snapshots SnapshotSource,
	parallelism int,
	logger *slog.Logger,
) FeatureAssembler {
	if parallelism <= 0 {
		parallelism = 8
	}
	return &featureAssembler{
		chunkRepo:   chunkRepo,
		snapshots:   snapshots,
		parallelism: parallelism,
		logger:      logger,
	}
}

func (a *featureAssembler) Assemble(ctx context.Context, tenantID uuid.UUID, candidates []domain.Candidate) ([]domain.FeatureVector, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ChunkID
	}

	chunks, err := a.chunkRepo.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate chunks: %w", err)
	}
	chunkByID := make(map[uuid.UUID]domain.Chunk, len(chunks))
	for _, c := range chunks {
		chunkByID[c.ID] = c
	}

	now := time.Now()
	features := make([]domain.FeatureVector, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.parallelism)
	for i, cand := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk, ok := chunkByID[cand.ChunkID]
			if !ok {
				// Deactivated between search and assembly; score the
				// candidate on similarity alone.
				features[i] = domain.FeatureVector{
					SchemaVersion: domain.FeatureSchemaVersion,
					ChunkID:       cand.ChunkID,
					Checksum:      cand.Checksum,
					Similarity:    cand.Similarity,
					AgeHours:      now.Sub(cand.CreatedAt).Hours(),
				}
				return nil
			}
			features[i] = a.buildFeatures(cand, chunk, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return features, nil
}

func (a *featureAssembler) buildFeatures(cand domain.Candidate, chunk domain.Chunk, now time.Time) domain.FeatureVector {
	f := domain.FeatureVector{
		SchemaVersion: domain.FeatureSchemaVersion,
		ChunkID:       chunk.ID,
		Checksum:      chunk.Checksum,
		Similarity:    cand.Similarity,
		Authority:     float64(chunk.Authority),
		Quality:       float64(chunk.Quality),
		Complexity:    float64(chunk.Complexity),
		AgeHours:      now.Sub(chunk.CreatedAt).Hours(),
		EntityCount:   len(chunk.Enrichment.Entities()),
		TopicCount:    len(chunk.Enrichment.Topics()),
		HasSummary:    chunk.Enrichment.Summary() != "",
	}
	if snapshot, ok := a.snapshots.Snapshot(chunk.ID); ok {
		f.Engagement = snapshot.Signal()
	}
	return f
}
