package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"retrieval-engine/internal/domain"
)

type chunkRepository struct {
	pool Pool
}

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(pool Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

type queryExecutor interface {
	rowExecutor
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func (r *chunkRepository) getExecutor(ctx context.Context) queryExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const chunkColumns = `id, tenant_id, document_id, ordinal, content, checksum, embedding_small, embedding_dense, enrichment, authority, quality, complexity, active, created_at`

func scanChunk(row pgx.Row) (*domain.Chunk, error) {
	var c domain.Chunk
	var dense *pgvector.Vector
	var enrichment []byte
	err := row.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.Ordinal, &c.Content, &c.Checksum,
		&c.EmbeddingSmall, &dense, &enrichment, &c.Authority, &c.Quality, &c.Complexity, &c.Active, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.EmbeddingDense = dense
	c.Enrichment, err = domain.DecodeStoredEnrichment(enrichment)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chunkRepository) GetByChecksum(ctx context.Context, tenantID uuid.UUID, checksum string) (*domain.Chunk, error) {
	query := fmt.Sprintf(`SELECT %s FROM chunks WHERE tenant_id = $1 AND checksum = $2`, chunkColumns)
	row := r.getExecutor(ctx).QueryRow(ctx, query, tenantID, checksum)

	chunk, err := scanChunk(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan chunk: %w", err)
	}
	return chunk, nil
}

func (r *chunkRepository) Insert(ctx context.Context, chunk *domain.Chunk) error {
	enrichment, err := chunk.Enrichment.Encode()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO chunks (id, tenant_id, document_id, ordinal, content, checksum, embedding_small, embedding_dense, enrichment, authority, quality, complexity, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err = r.getExecutor(ctx).Exec(ctx, query,
		chunk.ID, chunk.TenantID, chunk.DocumentID, chunk.Ordinal, chunk.Content, chunk.Checksum,
		chunk.EmbeddingSmall, chunk.EmbeddingDense, enrichment,
		chunk.Authority, chunk.Quality, chunk.Complexity, chunk.Active, chunk.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

func (r *chunkRepository) GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM chunks WHERE tenant_id = $1 AND id = ANY($2) AND active`, chunkColumns)
	rows, err := r.getExecutor(ctx).Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepository) FetchDenseVectors(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID][]float32, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, embedding_dense
		FROM chunks
		WHERE tenant_id = $1 AND id = ANY($2) AND embedding_dense IS NOT NULL AND active
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query dense vectors: %w", err)
	}
	defer rows.Close()

	vectors := make(map[uuid.UUID][]float32)
	for rows.Next() {
		var id uuid.UUID
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan dense vector: %w", err)
		}
		vectors[id] = vec.Slice()
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return vectors, nil
}

func (r *chunkRepository) Deactivate(ctx context.Context, tenantID uuid.UUID, chunkID uuid.UUID) error {
	query := `UPDATE chunks SET active = false WHERE tenant_id = $1 AND id = $2`
	tag, err := r.getExecutor(ctx).Exec(ctx, query, tenantID, chunkID)
	if err != nil {
		return fmt.Errorf("failed to deactivate chunk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewValidationError("chunk_id", "unknown chunk")
	}
	return nil
}
