package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"retrieval-engine/internal/domain"
)

// AdminUsecase manages the scoring weight registry and ANN runtime
// profiles. Activation is atomic per tenant: at most one set is active.
type AdminUsecase interface {
	CreateWeightSet(ctx context.Context, set domain.ScoringWeightSet) (*domain.ScoringWeightSet, error)
	ActivateWeightSet(ctx context.Context, tenantID, setID uuid.UUID) error
	GetActiveWeightSet(ctx context.Context, tenantID uuid.UUID) (domain.ScoringWeightSet, error)
	UpsertANNProfile(ctx context.Context, profile domain.ANNRuntimeProfile) error
}

type adminUsecase struct {
	registry domain.RegistryRepository
	resolver *RegistryResolver
	logger   *slog.Logger
}

// NewAdminUsecase creates the registry administration usecase.
func NewAdminUsecase(registry domain.RegistryRepository, resolver *RegistryResolver, logger *slog.Logger) AdminUsecase {
	return &adminUsecase{registry: registry, resolver: resolver, logger: logger}
}

func (u *adminUsecase) CreateWeightSet(ctx context.Context, set domain.ScoringWeightSet) (*domain.ScoringWeightSet, error) {
	if set.TenantID == uuid.Nil {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}
	if set.Name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if err := set.Validate(); err != nil {
		return nil, domain.NewValidationError("weights", err.Error())
	}

	set.ID = uuid.New()
	set.Active = false
	set.CreatedAt = time.Now()
	if set.Version <= 0 {
		set.Version = 1
	}

	if err := u.registry.InsertWeightSet(ctx, &set); err != nil {
		return nil, fmt.Errorf("failed to store weight set: %w", err)
	}

	u.logger.Info("weight_set_created",
		slog.String("tenant_id", set.TenantID.String()),
		slog.String("weight_set_id", set.ID.String()),
		slog.String("name", set.Name))
	return &set, nil
}

func (u *adminUsecase) ActivateWeightSet(ctx context.Context, tenantID, setID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return domain.NewValidationError("tenant_id", "is required")
	}
	if setID == uuid.Nil {
		return domain.NewValidationError("weight_set_id", "is required")
	}

	if err := u.registry.ActivateWeightSet(ctx, tenantID, setID); err != nil {
		return fmt.Errorf("failed to activate weight set: %w", err)
	}

	// In-flight queries keep the set they resolved at start; only new
	// resolutions see the activation.
	u.resolver.Invalidate(tenantID)

	u.logger.Info("weight_set_activated",
		slog.String("tenant_id", tenantID.String()),
		slog.String("weight_set_id", setID.String()))
	return nil
}

func (u *adminUsecase) GetActiveWeightSet(ctx context.Context, tenantID uuid.UUID) (domain.ScoringWeightSet, error) {
	if tenantID == uuid.Nil {
		return domain.ScoringWeightSet{}, domain.NewValidationError("tenant_id", "is required")
	}
	return u.resolver.ResolveWeights(ctx, tenantID), nil
}

func (u *adminUsecase) UpsertANNProfile(ctx context.Context, profile domain.ANNRuntimeProfile) error {
	if profile.TenantID == uuid.Nil {
		return domain.NewValidationError("tenant_id", "is required")
	}
	if err := profile.Validate(); err != nil {
		return domain.NewValidationError("profile", err.Error())
	}

	profile.UpdatedAt = time.Now()
	if err := u.registry.UpsertANNProfile(ctx, &profile); err != nil {
		return fmt.Errorf("failed to store ann profile: %w", err)
	}

	u.resolver.Invalidate(profile.TenantID)

	u.logger.Info("ann_profile_updated",
		slog.String("tenant_id", profile.TenantID.String()),
		slog.Int("probes", profile.Probes),
		slog.Int("ef_search", profile.EfSearch))
	return nil
}
