package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"retrieval-engine/internal/domain"
)

// UpsertDocumentInput carries one document ingestion request.
type UpsertDocumentInput struct {
	TenantID    uuid.UUID
	ExternalRef string
	ContentHash string
	Title       string
	Language    string
	SourceType  string
}

// UpsertChunkInput carries one chunk ingestion request.
type UpsertChunkInput struct {
	TenantID       uuid.UUID
	DocumentID     uuid.UUID
	Ordinal        int
	Text           string
	Checksum       string
	EmbeddingSmall []float32
	EmbeddingDense []float32
	Enrichment     []byte
	Authority      float32
	Quality        float32
	Complexity     float32
}

// IngestUsecase is the content store contract consumed by the ingestion
// collaborator. Every operation is safely repeatable.
type IngestUsecase interface {
	UpsertDocument(ctx context.Context, in UpsertDocumentInput) (*domain.UpsertDocumentResult, error)
	UpsertChunk(ctx context.Context, in UpsertChunkInput) (*domain.UpsertChunkResult, error)
	DeactivateChunk(ctx context.Context, tenantID, chunkID uuid.UUID) error
}

type ingestUsecase struct {
	docRepo   domain.DocumentRepository
	chunkRepo domain.ChunkRepository
	txManager domain.TransactionManager
	checksums domain.ChecksumPolicy
	logger    *slog.Logger
}

// NewIngestUsecase creates the content store usecase.
func NewIngestUsecase(
	docRepo domain.DocumentRepository,
	chunkRepo domain.ChunkRepository,
	txManager domain.TransactionManager,
	checksums domain.ChecksumPolicy,
	logger *slog.Logger,
) IngestUsecase {
	return &ingestUsecase{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		txManager: txManager,
		checksums: checksums,
		logger:    logger,
	}
}

// UpsertDocument applies a document version. Identical content is a no-op
// against the existing version; new content creates version+1 and flips
// the previous latest flag off in the same transaction. A concurrent
// version bump is retried once with a fresh read before being surfaced.
func (u *ingestUsecase) UpsertDocument(ctx context.Context, in UpsertDocumentInput) (*domain.UpsertDocumentResult, error) {
	if in.TenantID == uuid.Nil {
		return nil, domain.NewValidationError("tenant_id", "must not be empty")
	}
	if in.ExternalRef == "" {
		return nil, domain.NewValidationError("external_ref", "must not be empty")
	}
	if err := u.checksums.Validate(in.ContentHash); err != nil {
		return nil, err
	}

	result, err := u.upsertDocumentOnce(ctx, in)
	if errors.Is(err, domain.ErrVersionConflict) {
		u.logger.Warn("document_version_conflict_retrying",
			slog.String("external_ref", in.ExternalRef))
		result, err = u.upsertDocumentOnce(ctx, in)
	}
	return result, err
}

func (u *ingestUsecase) upsertDocumentOnce(ctx context.Context, in UpsertDocumentInput) (*domain.UpsertDocumentResult, error) {
	var result *domain.UpsertDocumentResult
	err := u.txManager.RunInTx(ctx, func(ctx context.Context) error {
		latest, err := u.docRepo.GetLatestByExternalRef(ctx, in.TenantID, in.ExternalRef)
		if err != nil {
			return fmt.Errorf("failed to get latest document: %w", err)
		}

		if latest != nil && latest.ContentHash == in.ContentHash {
			result = &domain.UpsertDocumentResult{
				DocumentID:   latest.ID,
				Version:      latest.Version,
				IsNewVersion: false,
			}
			return nil
		}

		version := 1
		if latest != nil {
			version = latest.Version + 1
			if err := u.docRepo.ClearLatest(ctx, in.TenantID, in.ExternalRef); err != nil {
				return err
			}
		}

		now := time.Now()
		doc := &domain.Document{
			ID:          uuid.New(),
			TenantID:    in.TenantID,
			ExternalRef: in.ExternalRef,
			ContentHash: in.ContentHash,
			Version:     version,
			IsLatest:    true,
			Title:       in.Title,
			Language:    in.Language,
			SourceType:  in.SourceType,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := u.docRepo.Insert(ctx, doc); err != nil {
			return err
		}

		result = &domain.UpsertDocumentResult{
			DocumentID:   doc.ID,
			Version:      version,
			IsNewVersion: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpsertChunk stores a chunk unless one with the same (tenant, checksum)
// already exists, in which case the existing id is returned with
// Deduplicated=true and nothing is written.
func (u *ingestUsecase) UpsertChunk(ctx context.Context, in UpsertChunkInput) (*domain.UpsertChunkResult, error) {
	if err := u.checksums.Validate(in.Checksum); err != nil {
		return nil, err
	}
	if in.Text == "" {
		return nil, domain.NewValidationError("text", "must not be empty")
	}
	if in.Ordinal < 0 {
		return nil, domain.NewValidationError("ordinal", "must be non-negative")
	}
	if len(in.EmbeddingSmall) == 0 {
		return nil, domain.NewValidationError("embedding_small", "must not be empty")
	}

	existing, err := u.chunkRepo.GetByChecksum(ctx, in.TenantID, in.Checksum)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &domain.UpsertChunkResult{ChunkID: existing.ID, Deduplicated: true}, nil
	}

	enrichment, err := domain.DecodeEnrichment(in.Enrichment)
	if err != nil {
		return nil, domain.NewValidationError("enrichment", err.Error())
	}

	chunk := &domain.Chunk{
		ID:             uuid.New(),
		TenantID:       in.TenantID,
		DocumentID:     in.DocumentID,
		Ordinal:        in.Ordinal,
		Content:        in.Text,
		Checksum:       in.Checksum,
		EmbeddingSmall: pgvector.NewVector(in.EmbeddingSmall),
		Enrichment:     enrichment,
		Authority:      in.Authority,
		Quality:        in.Quality,
		Complexity:     in.Complexity,
		Active:         true,
		CreatedAt:      time.Now(),
	}
	if len(in.EmbeddingDense) > 0 {
		dense := pgvector.NewVector(in.EmbeddingDense)
		chunk.EmbeddingDense = &dense
	}

	if err := u.chunkRepo.Insert(ctx, chunk); err != nil {
		// A concurrent identical upsert may have won the unique
		// constraint race; resolve it as a dedup, not a failure.
		raced, lookupErr := u.chunkRepo.GetByChecksum(ctx, in.TenantID, in.Checksum)
		if lookupErr == nil && raced != nil {
			return &domain.UpsertChunkResult{ChunkID: raced.ID, Deduplicated: true}, nil
		}
		return nil, err
	}

	return &domain.UpsertChunkResult{ChunkID: chunk.ID, Deduplicated: false}, nil
}

// DeactivateChunk soft-deletes a chunk; the row stays behind for audit.
func (u *ingestUsecase) DeactivateChunk(ctx context.Context, tenantID, chunkID uuid.UUID) error {
	return u.chunkRepo.Deactivate(ctx, tenantID, chunkID)
}
