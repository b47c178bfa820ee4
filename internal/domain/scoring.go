package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeatureSchemaVersion is the shape version stamped on every assembled
// FeatureVector. The fusion engine refuses older shapes and asks for
// recomputation instead of silently mis-scoring.
const FeatureSchemaVersion = 2

// ScoringWeightSet is a named, versioned fusion configuration. Exactly one
// set is active per tenant at a time, enforced at activation.
type ScoringWeightSet struct {
	ID               uuid.UUID
	TenantID         uuid.UUID
	Name             string
	Version          int
	SimilarityWeight float64
	RerankWeight     float64
	EngagementWeight float64
	AuthorityWeight  float64
	RecencyHalfLife  time.Duration
	ModelVariant     string
	Active           bool
	CreatedAt        time.Time
}

// Validate checks the weight set for use in scoring.
func (w ScoringWeightSet) Validate() error {
	if w.SimilarityWeight < 0 || w.RerankWeight < 0 || w.EngagementWeight < 0 || w.AuthorityWeight < 0 {
		return fmt.Errorf("fusion weights must be non-negative")
	}
	if w.SimilarityWeight+w.RerankWeight+w.EngagementWeight+w.AuthorityWeight == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if w.RecencyHalfLife <= 0 {
		return fmt.Errorf("recency half-life must be positive, got %v", w.RecencyHalfLife)
	}
	return nil
}

// DefaultWeightSet returns the fallback configuration used when a tenant
// has no active set. The numbers are starting points, not contract.
func DefaultWeightSet(tenantID uuid.UUID) ScoringWeightSet {
	return ScoringWeightSet{
		ID:               uuid.New(),
		TenantID:         tenantID,
		Name:             "default",
		Version:          1,
		SimilarityWeight: 0.55,
		RerankWeight:     0.20,
		EngagementWeight: 0.15,
		AuthorityWeight:  0.10,
		RecencyHalfLife:  14 * 24 * time.Hour,
		CreatedAt:        time.Now(),
	}
}

// VectorField selects which embedding column a search runs against.
type VectorField string

const (
	FieldSmall VectorField = "embedding_small"
	FieldDense VectorField = "embedding_dense"
)

// ANNRuntimeProfile holds per-tenant index tuning parameters.
type ANNRuntimeProfile struct {
	TenantID      uuid.UUID
	Probes        int
	EfSearch      int
	MinCandidates int
	MaxCandidates int
	UpdatedAt     time.Time
}

// DefaultANNProfile returns conservative runtime defaults.
func DefaultANNProfile(tenantID uuid.UUID) ANNRuntimeProfile {
	return ANNRuntimeProfile{
		TenantID:      tenantID,
		Probes:        10,
		EfSearch:      80,
		MinCandidates: 20,
		MaxCandidates: 200,
		UpdatedAt:     time.Now(),
	}
}

// CandidatePool sizes the ANN request for a final answer of k results.
// The index is asked for more neighbors than k so the fusion engine has
// room to re-order, bounded by the profile.
func (p ANNRuntimeProfile) CandidatePool(k int) int {
	pool := k * 4
	if pool < p.MinCandidates {
		pool = p.MinCandidates
	}
	if p.MaxCandidates > 0 && pool > p.MaxCandidates {
		pool = p.MaxCandidates
	}
	return pool
}

// Validate checks profile bounds.
func (p ANNRuntimeProfile) Validate() error {
	if p.Probes <= 0 {
		return fmt.Errorf("probes must be positive, got %d", p.Probes)
	}
	if p.EfSearch <= 0 {
		return fmt.Errorf("ef_search must be positive, got %d", p.EfSearch)
	}
	if p.MinCandidates <= 0 {
		return fmt.Errorf("min_candidates must be positive, got %d", p.MinCandidates)
	}
	if p.MaxCandidates < p.MinCandidates {
		return fmt.Errorf("max_candidates (%d) must be >= min_candidates (%d)", p.MaxCandidates, p.MinCandidates)
	}
	return nil
}

// FeatureVector is the per-candidate feature row fed into fusion scoring.
type FeatureVector struct {
	SchemaVersion int
	ChunkID       uuid.UUID
	Checksum      string
	Similarity    float64
	Authority     float64
	Quality       float64
	Complexity    float64
	Engagement    float64
	AgeHours      float64
	EntityCount   int
	TopicCount    int
	HasSummary    bool
}

// FeatureSnapshot freezes the exact feature matrix and weights used for
// one query, keyed by a hash of the query and candidate set, so a scoring
// decision can be replayed for audit.
type FeatureSnapshot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	QueryHash string
	Features  []FeatureVector
	Weights   ScoringWeightSet
	CreatedAt time.Time
}

// QueryPerformanceRecord is the telemetry row written once per completed
// (or timed-out) query.
type QueryPerformanceRecord struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	QueryHash       string
	LatencyMs       int64
	CandidateCount  int
	ClickedChunkIDs []uuid.UUID
	ExperimentID    *uuid.UUID
	Degraded        bool
	CreatedAt       time.Time
}
