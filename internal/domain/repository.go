package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DocumentRepository manages document version rows.
type DocumentRepository interface {
	// GetLatestByExternalRef retrieves the row marked latest for
	// (tenant, externalRef). Returns nil, nil if not found.
	GetLatestByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRef string) (*Document, error)

	// Insert creates a new document version row. A unique-constraint
	// collision on (tenant, externalRef, version) surfaces as
	// ErrVersionConflict so the caller can re-read and retry.
	Insert(ctx context.Context, doc *Document) error

	// ClearLatest flips is_latest off on the current latest row for
	// (tenant, externalRef).
	ClearLatest(ctx context.Context, tenantID uuid.UUID, externalRef string) error
}

// ChunkRepository manages chunk rows. Vector search lives in the index
// manager, which owns its own SQL.
type ChunkRepository interface {
	// GetByChecksum retrieves a chunk by its tenant-unique checksum.
	// Returns nil, nil if not found.
	GetByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string) (*Chunk, error)

	// Insert creates a new chunk row.
	Insert(ctx context.Context, chunk *Chunk) error

	// GetByIDs retrieves active chunks by id, restricted to the tenant.
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Chunk, error)

	// FetchDenseVectors returns dense embeddings for the given chunks,
	// omitting chunks without one.
	FetchDenseVectors(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID][]float32, error)

	// Deactivate soft-deletes a chunk; the row stays for audit.
	Deactivate(ctx context.Context, tenantID uuid.UUID, chunkID uuid.UUID) error
}

// InteractionRepository stores append-only feedback events and the
// snapshots derived from them.
type InteractionRepository interface {
	// InsertEvents appends interaction events. Events are never updated
	// or deleted by the core.
	InsertEvents(ctx context.Context, events []InteractionEvent) error

	// AggregateDecayed computes per-chunk decay-weighted aggregates over
	// all events, with event age discounted by the half-life.
	AggregateDecayed(ctx context.Context, halfLife time.Duration, now time.Time) ([]EngagementSnapshot, error)

	// ReplaceSnapshots persists a freshly computed snapshot generation.
	ReplaceSnapshots(ctx context.Context, snapshots []EngagementSnapshot) error
}

// RegistryRepository stores scoring weight sets, experiments, and ANN
// runtime profiles.
type RegistryRepository interface {
	// GetActiveWeightSet returns the single active set for the tenant.
	// Returns nil, nil if none is active.
	GetActiveWeightSet(ctx context.Context, tenantID uuid.UUID) (*ScoringWeightSet, error)

	// InsertWeightSet stores a new (inactive) weight set.
	InsertWeightSet(ctx context.Context, set *ScoringWeightSet) error

	// ActivateWeightSet marks the set active and deactivates the prior
	// active set in the same transaction.
	ActivateWeightSet(ctx context.Context, tenantID uuid.UUID, setID uuid.UUID) error

	// GetANNProfile returns the tenant's index tuning profile.
	// Returns nil, nil if none has been stored.
	GetANNProfile(ctx context.Context, tenantID uuid.UUID) (*ANNRuntimeProfile, error)

	// UpsertANNProfile stores or updates the tenant's profile.
	UpsertANNProfile(ctx context.Context, profile *ANNRuntimeProfile) error
}

// TelemetryRepository stores query outcome records and sampled feature
// snapshots. Writes happen off the response path.
type TelemetryRepository interface {
	InsertPerformanceRecord(ctx context.Context, rec *QueryPerformanceRecord) error
	InsertFeatureSnapshot(ctx context.Context, snap *FeatureSnapshot) error
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
