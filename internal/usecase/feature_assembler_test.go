package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/usecase"
)

func TestAssemble_MergesChunkSignalsAndEngagement(t *testing.T) {
	tenantID := uuid.New()
	enrichment, err := domain.DecodeEnrichment([]byte(`{"entities":["pgvector","hnsw"],"topics":["indexing"],"summary":"index tuning notes"}`))
	require.NoError(t, err)

	chunk := domain.Chunk{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DocumentID: uuid.New(),
		Checksum:   "abc",
		Enrichment: enrichment,
		Authority:  0.8,
		Quality:    0.6,
		Complexity: 0.4,
		Active:     true,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
	}

	chunkRepo := new(MockChunkRepository)
	chunkRepo.On("GetByIDs", mock.Anything, tenantID, []uuid.UUID{chunk.ID}).Return([]domain.Chunk{chunk}, nil)

	snapshots := stubSnapshots{
		chunk.ID: {ChunkID: chunk.ID, CTR: 0.5, Upvotes: 3, Downvotes: 1},
	}

	assembler := usecase.NewFeatureAssembler(chunkRepo, snapshots, 4, testLogger())
	features, err := assembler.Assemble(context.Background(), tenantID, []domain.Candidate{
		{ChunkID: chunk.ID, Checksum: chunk.Checksum, Similarity: 0.77},
	})

	require.NoError(t, err)
	require.Len(t, features, 1)
	f := features[0]
	assert.Equal(t, domain.FeatureSchemaVersion, f.SchemaVersion)
	assert.Equal(t, 0.77, f.Similarity)
	assert.InDelta(t, 0.8, f.Authority, 1e-6)
	assert.InDelta(t, 0.6, f.Quality, 1e-6)
	assert.Equal(t, 2, f.EntityCount)
	assert.Equal(t, 1, f.TopicCount)
	assert.True(t, f.HasSummary)
	assert.InDelta(t, 2.0, f.AgeHours, 0.1)
	// 0.7*CTR + 0.3*(3/4)
	assert.InDelta(t, 0.575, f.Engagement, 1e-6)
}

func TestAssemble_MissingChunkFallsBackToSimilarityOnly(t *testing.T) {
	tenantID := uuid.New()
	deactivated := domain.Candidate{
		ChunkID:    uuid.New(),
		Checksum:   "gone",
		Similarity: 0.42,
		CreatedAt:  time.Now(),
	}

	chunkRepo := new(MockChunkRepository)
	chunkRepo.On("GetByIDs", mock.Anything, tenantID, mock.Anything).Return([]domain.Chunk{}, nil)

	assembler := usecase.NewFeatureAssembler(chunkRepo, stubSnapshots{}, 4, testLogger())
	features, err := assembler.Assemble(context.Background(), tenantID, []domain.Candidate{deactivated})

	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, 0.42, features[0].Similarity)
	assert.Zero(t, features[0].Authority)
	assert.Zero(t, features[0].Engagement)
	assert.Equal(t, domain.FeatureSchemaVersion, features[0].SchemaVersion)
}

func TestAssemble_PropagatesRepositoryError(t *testing.T) {
	tenantID := uuid.New()
	chunkRepo := new(MockChunkRepository)
	chunkRepo.On("GetByIDs", mock.Anything, tenantID, mock.Anything).Return(nil, assert.AnError)

	assembler := usecase.NewFeatureAssembler(chunkRepo, stubSnapshots{}, 4, testLogger())
	_, err := assembler.Assemble(context.Background(), tenantID, []domain.Candidate{{ChunkID: uuid.New()}})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestAssemble_EmptyCandidatesIsNoOp(t *testing.T) {
	chunkRepo := new(MockChunkRepository)
	assembler := usecase.NewFeatureAssembler(chunkRepo, stubSnapshots{}, 4, testLogger())

	features, err := assembler.Assemble(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Nil(t, features)
	chunkRepo.AssertNotCalled(t, "GetByIDs", mock.Anything, mock.Anything, mock.Anything)
}
