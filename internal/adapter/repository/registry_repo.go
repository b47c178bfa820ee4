package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"retrieval-engine/internal/domain"
)

type registryRepository struct {
	pool Pool
}

// NewRegistryRepository creates a new RegistryRepository.
func NewRegistryRepository(pool Pool) domain.RegistryRepository {
	return &registryRepository{pool: pool}
}

const weightSetColumns = `id, tenant_id, name, version, w_similarity, w_rerank, w_engagement, w_authority, recency_half_life_secs, model_variant, active, created_at`

func scanWeightSet(row pgx.Row) (*domain.ScoringWeightSet, error) {
	var w domain.ScoringWeightSet
	var recencySecs int64
	err := row.Scan(&w.ID, &w.TenantID, &w.Name, &w.Version,
		&w.SimilarityWeight, &w.RerankWeight, &w.EngagementWeight, &w.AuthorityWeight,
		&recencySecs, &w.ModelVariant, &w.Active, &w.CreatedAt)
	if err != nil {
		return nil, err
	}
	w.RecencyHalfLife = time.Duration(recencySecs) * time.Second
	return &w, nil
}

func (r *registryRepository) GetActiveWeightSet(ctx context.Context, tenantID uuid.UUID) (*domain.ScoringWeightSet, error) {
	query := fmt.Sprintf(`SELECT %s FROM scoring_weight_sets WHERE tenant_id = $1 AND active`, weightSetColumns)
	row := r.pool.QueryRow(ctx, query, tenantID)

	set, err := scanWeightSet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan weight set: %w", err)
	}
	return set, nil
}

func (r *registryRepository) InsertWeightSet(ctx context.Context, set *domain.ScoringWeightSet) error {
	query := `
		INSERT INTO scoring_weight_sets (id, tenant_id, name, version, w_similarity, w_rerank, w_engagement, w_authority, recency_half_life_secs, model_variant, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, false, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		set.ID, set.TenantID, set.Name, set.Version,
		set.SimilarityWeight, set.RerankWeight, set.EngagementWeight, set.AuthorityWeight,
		int64(set.RecencyHalfLife.Seconds()),
		set.ModelVariant, set.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert weight set: %w", err)
	}
	return nil
}

// ActivateWeightSet flips the prior active set off and the new one on in
// a single transaction, keeping "exactly one active per tenant" true at
// every commit point.
func (r *registryRepository) ActivateWeightSet(ctx context.Context, tenantID uuid.UUID, setID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE scoring_weight_sets SET active = false WHERE tenant_id = $1 AND active`, tenantID); err != nil {
		return fmt.Errorf("failed to deactivate prior weight set: %w", err)
	}

	tag, err := tx.Exec(ctx, `UPDATE scoring_weight_sets SET active = true WHERE tenant_id = $1 AND id = $2`, tenantID, setID)
	if err != nil {
		return fmt.Errorf("failed to activate weight set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewValidationError("weight_set_id", "unknown weight set")
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation tx: %w", err)
	}
	return nil
}

func (r *registryRepository) GetANNProfile(ctx context.Context, tenantID uuid.UUID) (*domain.ANNRuntimeProfile, error) {
	query := `
		SELECT tenant_id, probes, ef_search, min_candidates, max_candidates, updated_at
		FROM ann_runtime_profiles
		WHERE tenant_id = $1
	`
	row := r.pool.QueryRow(ctx, query, tenantID)

	var p domain.ANNRuntimeProfile
	err := row.Scan(&p.TenantID, &p.Probes, &p.EfSearch, &p.MinCandidates, &p.MaxCandidates, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ann profile: %w", err)
	}
	return &p, nil
}

func (r *registryRepository) UpsertANNProfile(ctx context.Context, profile *domain.ANNRuntimeProfile) error {
	query := `
		INSERT INTO ann_runtime_profiles (tenant_id, probes, ef_search, min_candidates, max_candidates, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE SET
			probes = EXCLUDED.probes,
			ef_search = EXCLUDED.ef_search,
			min_candidates = EXCLUDED.min_candidates,
			max_candidates = EXCLUDED.max_candidates,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query,
		profile.TenantID, profile.Probes, profile.EfSearch, profile.MinCandidates, profile.MaxCandidates, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ann profile: %w", err)
	}
	return nil
}
