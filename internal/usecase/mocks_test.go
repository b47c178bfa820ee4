package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"retrieval-engine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetLatestByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRef string) (*domain.Document, error) {
	args := m.Called(ctx, tenantID, externalRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) Insert(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) ClearLatest(ctx context.Context, tenantID uuid.UUID, externalRef string) error {
	args := m.Called(ctx, tenantID, externalRef)
	return args.Error(0)
}

type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) GetByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string) (*domain.Chunk, error) {
	args := m.Called(ctx, tenantID, checksum)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Chunk), args.Error(1)
}

func (m *MockChunkRepository) Insert(ctx context.Context, chunk *domain.Chunk) error {
	args := m.Called(ctx, chunk)
	return args.Error(0)
}

func (m *MockChunkRepository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Chunk, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepository) FetchDenseVectors(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]float32), args.Error(1)
}

func (m *MockChunkRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, chunkID uuid.UUID) error {
	args := m.Called(ctx, tenantID, chunkID)
	return args.Error(0)
}

type MockInteractionRepository struct {
	mock.Mock
}

func (m *MockInteractionRepository) InsertEvents(ctx context.Context, events []domain.InteractionEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func (m *MockInteractionRepository) AggregateDecayed(ctx context.Context, halfLife time.Duration, now time.Time) ([]domain.EngagementSnapshot, error) {
	args := m.Called(ctx, halfLife, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EngagementSnapshot), args.Error(1)
}

func (m *MockInteractionRepository) ReplaceSnapshots(ctx context.Context, snapshots []domain.EngagementSnapshot) error {
	args := m.Called(ctx, snapshots)
	return args.Error(0)
}

type MockRegistryRepository struct {
	mock.Mock
}

func (m *MockRegistryRepository) GetActiveWeightSet(ctx context.Context, tenantID uuid.UUID) (*domain.ScoringWeightSet, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScoringWeightSet), args.Error(1)
}

func (m *MockRegistryRepository) InsertWeightSet(ctx context.Context, set *domain.ScoringWeightSet) error {
	args := m.Called(ctx, set)
	return args.Error(0)
}

func (m *MockRegistryRepository) ActivateWeightSet(ctx context.Context, tenantID uuid.UUID, setID uuid.UUID) error {
	args := m.Called(ctx, tenantID, setID)
	return args.Error(0)
}

func (m *MockRegistryRepository) GetANNProfile(ctx context.Context, tenantID uuid.UUID) (*domain.ANNRuntimeProfile, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ANNRuntimeProfile), args.Error(1)
}

func (m *MockRegistryRepository) UpsertANNProfile(ctx context.Context, profile *domain.ANNRuntimeProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type MockTelemetryRepository struct {
	mock.Mock
}

func (m *MockTelemetryRepository) InsertPerformanceRecord(ctx context.Context, rec *domain.QueryPerformanceRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockTelemetryRepository) InsertFeatureSnapshot(ctx context.Context, snap *domain.FeatureSnapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type MockReranker struct {
	mock.Mock
}

func (m *MockReranker) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, query, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RerankResult), args.Error(1)
}

func (m *MockReranker) ModelName() string {
	args := m.Called()
	return args.String(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, events []domain.InteractionEvent) ([]string, error) {
	args := m.Called(ctx, events)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
