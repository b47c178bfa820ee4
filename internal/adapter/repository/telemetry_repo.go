package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"retrieval-engine/internal/domain"
)

type telemetryRepository struct {
	pool Pool
}

// NewTelemetryRepository creates a new TelemetryRepository.
func NewTelemetryRepository(pool Pool) domain.TelemetryRepository {
	return &telemetryRepository{pool: pool}
}

func (r *telemetryRepository) InsertPerformanceRecord(ctx context.Context, rec *domain.QueryPerformanceRecord) error {
	query := `
		INSERT INTO query_performance_records (id, tenant_id, query_hash, latency_ms, candidate_count, clicked_chunk_ids, experiment_id, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.QueryHash, rec.LatencyMs, rec.CandidateCount,
		rec.ClickedChunkIDs, rec.ExperimentID, rec.Degraded, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert performance record: %w", err)
	}
	return nil
}

func (r *telemetryRepository) InsertFeatureSnapshot(ctx context.Context, snap *domain.FeatureSnapshot) error {
	payload, err := json.Marshal(struct {
		Features []domain.FeatureVector  `json:"features"`
		Weights  domain.ScoringWeightSet `json:"weights"`
	}{Features: snap.Features, Weights: snap.Weights})
	if err != nil {
		return fmt.Errorf("failed to marshal feature snapshot: %w", err)
	}

	query := `
		INSERT INTO feature_snapshots (id, tenant_id, query_hash, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, query_hash) DO NOTHING
	`
	_, err = r.pool.Exec(ctx, query, snap.ID, snap.TenantID, snap.QueryHash, payload, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feature snapshot: %w", err)
	}
	return nil
}
