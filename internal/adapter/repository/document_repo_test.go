package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
)

func documentColumns() []string {
	return []string{"id", "tenant_id", "external_ref", "content_hash", "version", "is_latest", "title", "language", "source_type", "created_at", "updated_at"}
}

func TestGetLatestByExternalRef_Found(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	docID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("SELECT id, tenant_id, external_ref").
		WithArgs(tenantID, "kb/restore-guide").
		WillReturnRows(pgxmock.NewRows(documentColumns()).
			AddRow(docID, tenantID, "kb/restore-guide", "hash", 3, true, "Restore guide", "en", "markdown", now, now))

	repo := NewDocumentRepository(mock)
	doc, err := repo.GetLatestByExternalRef(context.Background(), tenantID, "kb/restore-guide")

	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, docID, doc.ID)
	assert.Equal(t, 3, doc.Version)
	assert.True(t, doc.IsLatest)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestByExternalRef_NotFoundIsNil(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("SELECT id, tenant_id, external_ref").
		WithArgs(tenantID, "kb/missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewDocumentRepository(mock)
	doc, err := repo.GetLatestByExternalRef(context.Background(), tenantID, "kb/missing")

	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestInsertDocument_UniqueViolationIsVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doc := &domain.Document{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		ExternalRef: "kb/contested",
		Version:     2,
		IsLatest:    true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(doc.ID, doc.TenantID, doc.ExternalRef, doc.ContentHash, doc.Version, doc.IsLatest,
			doc.Title, doc.Language, doc.SourceType, doc.CreatedAt, doc.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_tenant_ref_version_key"})

	repo := NewDocumentRepository(mock)
	err = repo.Insert(context.Background(), doc)

	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearLatest_FlipsFlag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectExec("UPDATE documents").
		WithArgs(tenantID, "kb/restore-guide").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewDocumentRepository(mock)
	require.NoError(t, repo.ClearLatest(context.Background(), tenantID, "kb/restore-guide"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
