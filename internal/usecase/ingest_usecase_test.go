package usecase_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/usecase"
)

var checksums = domain.NewChecksumPolicy()

type ingestMocks struct {
	docRepo   *MockDocumentRepository
	chunkRepo *MockChunkRepository
	tx        *MockTransactionManager
}

func newIngestUsecase() (usecase.IngestUsecase, *ingestMocks) {
	m := &ingestMocks{
		docRepo:   new(MockDocumentRepository),
		chunkRepo: new(MockChunkRepository),
		tx:        new(MockTransactionManager),
	}
	m.tx.On("RunInTx", mock.Anything, mock.Anything).Return(nil).Maybe()
	uc := usecase.NewIngestUsecase(m.docRepo, m.chunkRepo, m.tx, checksums, testLogger())
	return uc, m
}

func docInput(tenantID uuid.UUID, content string) usecase.UpsertDocumentInput {
	return usecase.UpsertDocumentInput{
		TenantID:    tenantID,
		ExternalRef: "kb/restore-guide",
		ContentHash: checksums.Compute(content),
		Title:       "Restore guide",
		Language:    "en",
		SourceType:  "markdown",
	}
}

func chunkInput(tenantID uuid.UUID, content string) usecase.UpsertChunkInput {
	return usecase.UpsertChunkInput{
		TenantID:       tenantID,
		DocumentID:     uuid.New(),
		Ordinal:        0,
		Text:           content,
		Checksum:       checksums.Compute(content),
		EmbeddingSmall: []float32{0.1, 0.2, 0.3},
	}
}

func TestUpsertDocument_FirstVersion(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := docInput(tenantID, "v1 content")

	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(nil, nil)
	m.docRepo.On("Insert", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.Version == 1 && doc.IsLatest && doc.ContentHash == in.ContentHash
	})).Return(nil)

	result, err := uc.UpsertDocument(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Version)
	assert.True(t, result.IsNewVersion)
	m.docRepo.AssertExpectations(t)
}

func TestUpsertDocument_IdenticalContentIsNoOp(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := docInput(tenantID, "same content")

	existing := &domain.Document{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ExternalRef: in.ExternalRef,
		ContentHash: in.ContentHash,
		Version:     3,
		IsLatest:    true,
	}
	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(existing, nil)

	result, err := uc.UpsertDocument(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.DocumentID)
	assert.Equal(t, 3, result.Version)
	assert.False(t, result.IsNewVersion)
	m.docRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	m.docRepo.AssertNotCalled(t, "ClearLatest", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpsertDocument_NewContentBumpsVersion(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := docInput(tenantID, "v2 content")

	existing := &domain.Document{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ExternalRef: in.ExternalRef,
		ContentHash: checksums.Compute("v1 content"),
		Version:     1,
		IsLatest:    true,
	}
	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(existing, nil)
	m.docRepo.On("ClearLatest", mock.Anything, tenantID, in.ExternalRef).Return(nil)
	m.docRepo.On("Insert", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.Version == 2 && doc.IsLatest
	})).Return(nil)

	result, err := uc.UpsertDocument(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.True(t, result.IsNewVersion)
	m.docRepo.AssertExpectations(t)
}

func TestUpsertDocument_RetriesOnceOnVersionConflict(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := docInput(tenantID, "contested content")

	winner := &domain.Document{
		ID:          uuid.New(),
		TenantID:    tenantID,
		ExternalRef: in.ExternalRef,
		ContentHash: checksums.Compute("the concurrent writer's content"),
		Version:     1,
		IsLatest:    true,
	}
	// First attempt sees no latest row and loses the insert race; the
	// retry re-reads and builds on top of the winner.
	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(nil, nil).Once()
	m.docRepo.On("Insert", mock.Anything, mock.Anything).Return(domain.ErrVersionConflict).Once()
	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(winner, nil).Once()
	m.docRepo.On("ClearLatest", mock.Anything, tenantID, in.ExternalRef).Return(nil).Once()
	m.docRepo.On("Insert", mock.Anything, mock.MatchedBy(func(doc *domain.Document) bool {
		return doc.Version == 2
	})).Return(nil).Once()

	result, err := uc.UpsertDocument(context.Background(), in)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.True(t, result.IsNewVersion)
	m.docRepo.AssertExpectations(t)
}

func TestUpsertDocument_SurfacesSecondConflict(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := docInput(tenantID, "hot content")

	m.docRepo.On("GetLatestByExternalRef", mock.Anything, tenantID, in.ExternalRef).Return(nil, nil)
	m.docRepo.On("Insert", mock.Anything, mock.Anything).Return(domain.ErrVersionConflict)

	_, err := uc.UpsertDocument(context.Background(), in)

	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	m.docRepo.AssertNumberOfCalls(t, "Insert", 2)
}

func TestUpsertDocument_RejectsInvalidInput(t *testing.T) {
	uc, _ := newIngestUsecase()

	tests := []struct {
		name   string
		mutate func(*usecase.UpsertDocumentInput)
	}{
		{"missing tenant", func(in *usecase.UpsertDocumentInput) { in.TenantID = uuid.Nil }},
		{"missing external ref", func(in *usecase.UpsertDocumentInput) { in.ExternalRef = "" }},
		{"malformed hash", func(in *usecase.UpsertDocumentInput) { in.ContentHash = "not-a-digest" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := docInput(uuid.New(), "content")
			tt.mutate(&in)

			_, err := uc.UpsertDocument(context.Background(), in)

			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestUpsertChunk_StoresNewChunk(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := chunkInput(tenantID, "restore from the latest snapshot first")
	in.EmbeddingDense = []float32{0.4, 0.5}
	in.Enrichment = []byte(`{"entities":["snapshot"],"summary":"restore steps"}`)

	m.chunkRepo.On("GetByChecksum", mock.Anything, tenantID, in.Checksum).Return(nil, nil)
	m.chunkRepo.On("Insert", mock.Anything, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.Checksum == in.Checksum &&
			c.Active &&
			c.EmbeddingDense != nil &&
			len(c.Enrichment.Entities()) == 1 &&
			c.Enrichment.Summary() == "restore steps"
	})).Return(nil)

	result, err := uc.UpsertChunk(context.Background(), in)

	require.NoError(t, err)
	assert.False(t, result.Deduplicated)
	m.chunkRepo.AssertExpectations(t)
}

func TestUpsertChunk_DeduplicatesByChecksum(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := chunkInput(tenantID, "already stored")

	existing := &domain.Chunk{ID: uuid.New(), TenantID: tenantID, Checksum: in.Checksum}
	m.chunkRepo.On("GetByChecksum", mock.Anything, tenantID, in.Checksum).Return(existing, nil)

	result, err := uc.UpsertChunk(context.Background(), in)

	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, existing.ID, result.ChunkID)
	m.chunkRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestUpsertChunk_ResolvesInsertRaceAsDedup(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := chunkInput(tenantID, "raced content")

	raced := &domain.Chunk{ID: uuid.New(), TenantID: tenantID, Checksum: in.Checksum}
	m.chunkRepo.On("GetByChecksum", mock.Anything, tenantID, in.Checksum).Return(nil, nil).Once()
	m.chunkRepo.On("Insert", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	m.chunkRepo.On("GetByChecksum", mock.Anything, tenantID, in.Checksum).Return(raced, nil).Once()

	result, err := uc.UpsertChunk(context.Background(), in)

	require.NoError(t, err)
	assert.True(t, result.Deduplicated)
	assert.Equal(t, raced.ID, result.ChunkID)
	m.chunkRepo.AssertExpectations(t)
}

func TestUpsertChunk_RejectsInvalidInput(t *testing.T) {
	uc, _ := newIngestUsecase()

	tests := []struct {
		name   string
		mutate func(*usecase.UpsertChunkInput)
	}{
		{"malformed checksum", func(in *usecase.UpsertChunkInput) { in.Checksum = "XYZ" }},
		{"empty text", func(in *usecase.UpsertChunkInput) { in.Text = "" }},
		{"negative ordinal", func(in *usecase.UpsertChunkInput) { in.Ordinal = -1 }},
		{"missing embedding", func(in *usecase.UpsertChunkInput) { in.EmbeddingSmall = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := chunkInput(uuid.New(), "content")
			tt.mutate(&in)

			_, err := uc.UpsertChunk(context.Background(), in)

			assert.True(t, domain.IsValidation(err))
		})
	}
}

func TestUpsertChunk_RejectsMalformedEnrichment(t *testing.T) {
	tenantID := uuid.New()
	uc, m := newIngestUsecase()
	in := chunkInput(tenantID, "content with bad enrichment")
	in.Enrichment = []byte(`{broken`)

	m.chunkRepo.On("GetByChecksum", mock.Anything, tenantID, in.Checksum).Return(nil, nil)

	_, err := uc.UpsertChunk(context.Background(), in)

	assert.True(t, domain.IsValidation(err))
	m.chunkRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestDeactivateChunk(t *testing.T) {
	tenantID := uuid.New()
	chunkID := uuid.New()
	uc, m := newIngestUsecase()

	m.chunkRepo.On("Deactivate", mock.Anything, tenantID, chunkID).Return(nil)

	require.NoError(t, uc.DeactivateChunk(context.Background(), tenantID, chunkID))
	m.chunkRepo.AssertExpectations(t)
}
