package index_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/index"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubStrategy returns a canned status for every build call.
type stubStrategy struct {
	name   string
	status index.BuildStatus
	calls  int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Build(_ context.Context, _ index.Pool, field domain.VectorField) index.BuildOutcome {
	s.calls++
	outcome := index.BuildOutcome{Strategy: s.name, Field: field, Status: s.status}
	if s.status != index.StatusSuccess {
		outcome.Err = assert.AnError
	}
	return outcome
}

func TestEnsureIndexes_FirstSupportedStrategyWins(t *testing.T) {
	graph := &stubStrategy{name: "hnsw", status: index.StatusUnsupported}
	partition := &stubStrategy{name: "ivfflat", status: index.StatusSuccess}
	fullScan := &stubStrategy{name: "seqscan", status: index.StatusSuccess}

	m := index.NewManager(nil, testLogger(), index.WithStrategies(graph, partition, fullScan))
	outcomes := m.EnsureIndexes(context.Background())

	// Two fields, two attempts each.
	require.Len(t, outcomes, 4)
	assert.Equal(t, 2, graph.calls)
	assert.Equal(t, 2, partition.calls)
	assert.Zero(t, fullScan.calls, "the walk stops at the first success")
	assert.Equal(t, "ivfflat", m.ActiveStrategy(domain.FieldSmall))
	assert.Equal(t, "ivfflat", m.ActiveStrategy(domain.FieldDense))
}

func TestEnsureIndexes_AllStrategiesFailingIsNotAnError(t *testing.T) {
	broken := &stubStrategy{name: "hnsw", status: index.StatusFailed}

	m := index.NewManager(nil, testLogger(), index.WithStrategies(broken))
	outcomes := m.EnsureIndexes(context.Background())

	require.Len(t, outcomes, 2)
	assert.Equal(t, "seqscan", m.ActiveStrategy(domain.FieldSmall),
		"with nothing built, searches fall through to full scans")
}

func TestHNSWBuild_ClassifiesMissingAccessMethodAsUnsupported(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE INDEX IF NOT EXISTS chunks_embedding_small_hnsw").
		WillReturnError(&pgconn.PgError{Code: "42704", Message: `access method "hnsw" does not exist`})

	outcome := index.NewHNSWStrategy().Build(context.Background(), mock, domain.FieldSmall)

	assert.Equal(t, index.StatusUnsupported, outcome.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHNSWBuild_OtherErrorsAreFailures(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE INDEX IF NOT EXISTS chunks_embedding_small_hnsw").
		WillReturnError(&pgconn.PgError{Code: "53100", Message: "disk full"})

	outcome := index.NewHNSWStrategy().Build(context.Background(), mock, domain.FieldSmall)

	assert.Equal(t, index.StatusFailed, outcome.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func candidateRows(ids ...uuid.UUID) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "document_id", "checksum", "content", "similarity", "created_at"})
	for i, id := range ids {
		rows.AddRow(id, uuid.New(), "checksum", "content", 0.9-float64(i)*0.1, time.Now())
	}
	return rows
}

func TestSearch_ReturnsCandidates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	first, second := uuid.New(), uuid.New()

	// Below the full-scan floor no planner knobs are set.
	mock.ExpectQuery(`SELECT count`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WithArgs(pgxmock.AnyArg(), tenantID, 20).
		WillReturnRows(candidateRows(first, second))
	mock.ExpectCommit()

	m := index.NewManager(mock, testLogger())
	candidates, err := m.Search(context.Background(), tenantID, []float32{0.1, 0.2}, 20, domain.DefaultANNProfile(tenantID), domain.FieldSmall)

	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, first, candidates[0].ChunkID)
	assert.Equal(t, 0.9, candidates[0].Similarity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_AppliesPlannerKnobsAboveFloor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	graph := &stubStrategy{name: "hnsw", status: index.StatusSuccess}
	m := index.NewManager(mock, testLogger(), index.WithStrategies(graph), index.WithFullScanFloor(100))
	m.EnsureIndexes(context.Background())

	mock.ExpectQuery(`SELECT count`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(50000)))
	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL hnsw.ef_search = 80").
		WillReturnResult(pgxmock.NewResult("SET", 0))
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WithArgs(pgxmock.AnyArg(), tenantID, 20).
		WillReturnRows(candidateRows(uuid.New()))
	mock.ExpectCommit()

	_, err = m.Search(context.Background(), tenantID, []float32{0.1, 0.2}, 20, domain.DefaultANNProfile(tenantID), domain.FieldSmall)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_RetriesPlainBeforeEscalating(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT count`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WithArgs(pgxmock.AnyArg(), tenantID, 20).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WithArgs(pgxmock.AnyArg(), tenantID, 20).
		WillReturnRows(candidateRows(uuid.New()))
	mock.ExpectCommit()

	m := index.NewManager(mock, testLogger())
	candidates, err := m.Search(context.Background(), tenantID, []float32{0.1, 0.2}, 20, domain.DefaultANNProfile(tenantID), domain.FieldSmall)

	require.NoError(t, err)
	assert.Len(t, candidates, 1)
}

func TestSearch_EscalatesToIndexUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT count`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(10)))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, document_id, checksum, content").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	m := index.NewManager(mock, testLogger())
	_, err = m.Search(context.Background(), tenantID, []float32{0.1, 0.2}, 20, domain.DefaultANNProfile(tenantID), domain.FieldSmall)

	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestSearch_RejectsNonPositivePoolSize(t *testing.T) {
	m := index.NewManager(nil, testLogger())

	_, err := m.Search(context.Background(), uuid.New(), []float32{0.1}, 0, domain.ANNRuntimeProfile{}, domain.FieldSmall)

	assert.True(t, domain.IsValidation(err))
}
