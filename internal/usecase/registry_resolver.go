package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"retrieval-engine/internal/domain"
)

const (
	registryCacheSize = 1024
	registryCacheTTL  = 30 * time.Second
)

// RegistryResolver resolves the active scoring configuration and ANN
// profile for a tenant, once per query, behind a short-lived cache. The
// resolved objects are passed down the pipeline; scoring logic never
// reads the registry as ambient state.
type RegistryResolver struct {
	repo     domain.RegistryRepository
	weights  *expirable.LRU[uuid.UUID, domain.ScoringWeightSet]
	profiles *expirable.LRU[uuid.UUID, domain.ANNRuntimeProfile]
	logger   *slog.Logger
}

// NewRegistryResolver creates a resolver with TTL-bounded caches.
func NewRegistryResolver(repo domain.RegistryRepository, logger *slog.Logger) *RegistryResolver {
	return &RegistryResolver{
		repo:     repo,
		weights:  expirable.NewLRU[uuid.UUID, domain.ScoringWeightSet](registryCacheSize, nil, registryCacheTTL),
		profiles: expirable.NewLRU[uuid.UUID, domain.ANNRuntimeProfile](registryCacheSize, nil, registryCacheTTL),
		logger:   logger,
	}
}

// ResolveWeights returns the tenant's active weight set, or the default
// set when none is active or the registry is unreachable.
func (r *RegistryResolver) ResolveWeights(ctx context.Context, tenantID uuid.UUID) domain.ScoringWeightSet {
	if cached, ok := r.weights.Get(tenantID); ok {
		return cached
	}

	set, err := r.repo.GetActiveWeightSet(ctx, tenantID)
	if err != nil {
		r.logger.Warn("weight_set_lookup_failed_using_default",
			slog.String("tenant_id", tenantID.String()),
			slog.String("error", err.Error()))
		return domain.DefaultWeightSet(tenantID)
	}
	if set == nil {
		return domain.DefaultWeightSet(tenantID)
	}

	r.weights.Add(tenantID, *set)
	return *set
}

// ResolveModelVariant returns the re-ranking model variant of the active
// weight set, or "" for the default model.
func (r *RegistryResolver) ResolveModelVariant(ctx context.Context, tenantID uuid.UUID) string {
	return r.ResolveWeights(ctx, tenantID).ModelVariant
}

// ResolveProfile returns the tenant's ANN runtime profile, or defaults.
func (r *RegistryResolver) ResolveProfile(ctx context.Context, tenantID uuid.UUID) domain.ANNRuntimeProfile {
	if cached, ok := r.profiles.Get(tenantID); ok {
		return cached
	}

	profile, err := r.repo.GetANNProfile(ctx, tenantID)
	if err != nil {
		r.logger.Warn("ann_profile_lookup_failed_using_default",
			slog.String("tenant_id", tenantID.String()),
			slog.String("error", err.Error()))
		return domain.DefaultANNProfile(tenantID)
	}
	if profile == nil {
		return domain.DefaultANNProfile(tenantID)
	}

	r.profiles.Add(tenantID, *profile)
	return *profile
}

// Invalidate drops cached entries for a tenant after an admin change.
func (r *RegistryResolver) Invalidate(tenantID uuid.UUID) {
	r.weights.Remove(tenantID)
	r.profiles.Remove(tenantID)
}
