package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"retrieval-engine/internal/domain"
)

type documentRepository struct {
	pool Pool
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(pool Pool) domain.DocumentRepository {
	return &documentRepository{pool: pool}
}

type rowExecutor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (r *documentRepository) getExecutor(ctx context.Context) rowExecutor {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *documentRepository) GetLatestByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRef string) (*domain.Document, error) {
	query := `
		SELECT id, tenant_id, external_ref, content_hash, version, is_latest, title, language, source_type, created_at, updated_at
		FROM documents
		WHERE tenant_id = $1 AND external_ref = $2 AND is_latest
	`
	row := r.getExecutor(ctx).QueryRow(ctx, query, tenantID, externalRef)

	var doc domain.Document
	err := row.Scan(&doc.ID, &doc.TenantID, &doc.ExternalRef, &doc.ContentHash, &doc.Version, &doc.IsLatest,
		&doc.Title, &doc.Language, &doc.SourceType, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) Insert(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO documents (id, tenant_id, external_ref, content_hash, version, is_latest, title, language, source_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query,
		doc.ID, doc.TenantID, doc.ExternalRef, doc.ContentHash, doc.Version, doc.IsLatest,
		doc.Title, doc.Language, doc.SourceType, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: version %d for %s", domain.ErrVersionConflict, doc.Version, doc.ExternalRef)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *documentRepository) ClearLatest(ctx context.Context, tenantID uuid.UUID, externalRef string) error {
	query := `
		UPDATE documents
		SET is_latest = false, updated_at = NOW()
		WHERE tenant_id = $1 AND external_ref = $2 AND is_latest
	`
	_, err := r.getExecutor(ctx).Exec(ctx, query, tenantID, externalRef)
	if err != nil {
		return fmt.Errorf("failed to clear latest flag: %w", err)
	}
	return nil
}
