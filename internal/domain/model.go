package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Document represents one version of a logical source unit. A document row
// is immutable once written; re-ingestion with new content produces a new
// row with version+1 and flips is_latest on the previous one.
type Document struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ExternalRef string
	ContentHash string
	Version     int
	IsLatest    bool
	Title       string
	Language    string
	SourceType  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Chunk is the smallest retrievable unit. It belongs to exactly one
// document version. Inactive chunks are excluded from retrieval but kept
// for audit.
type Chunk struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	DocumentID     uuid.UUID
	Ordinal        int
	Content        string
	Checksum       string
	EmbeddingSmall pgvector.Vector
	EmbeddingDense *pgvector.Vector
	Enrichment     Enrichment
	Authority      float32
	Quality        float32
	Complexity     float32
	Active         bool
	CreatedAt      time.Time
}

// UpsertDocumentResult reports what the content store did with a document.
type UpsertDocumentResult struct {
	DocumentID   uuid.UUID
	Version      int
	IsNewVersion bool
}

// UpsertChunkResult reports what the content store did with a chunk.
type UpsertChunkResult struct {
	ChunkID      uuid.UUID
	Deduplicated bool
}

// Candidate is a chunk returned by the vector index with its raw
// similarity score, before any fusion ranking.
type Candidate struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	Checksum   string
	Content    string
	Similarity float64
	CreatedAt  time.Time
}
