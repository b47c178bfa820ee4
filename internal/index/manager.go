// Package index maintains the ANN structures over chunk vectors and
// answers candidate searches against them.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"retrieval-engine/internal/domain"
)

// Pool is the subset of pgxpool.Pool the index manager needs. pgxmock's
// pool satisfies it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	// defaultFullScanFloor: below this many active rows the planner knobs
	// are pointless; skip them and let the query degrade to a full scan.
	defaultFullScanFloor = 1000

	rowCountTTL = 30 * time.Second
)

// Manager owns the per-field index strategy walk and candidate retrieval.
// Rebuilds happen in the background; queries keep using whatever structure
// is in place until a new one is swapped in by the store.
type Manager struct {
	db            Pool
	logger        *slog.Logger
	strategies    []Strategy
	fullScanFloor int64

	mu     sync.RWMutex
	active map[domain.VectorField]string

	countMu     sync.Mutex
	rowCount    int64
	rowCountAge time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStrategies replaces the default hnsw -> ivfflat -> seqscan order.
func WithStrategies(strategies ...Strategy) Option {
	return func(m *Manager) { m.strategies = strategies }
}

// WithFullScanFloor overrides the row-count floor.
func WithFullScanFloor(floor int64) Option {
	return func(m *Manager) { m.fullScanFloor = floor }
}

// NewManager creates an index manager over the chunks table.
func NewManager(db Pool, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		db:            db,
		logger:        logger,
		strategies:    []Strategy{NewHNSWStrategy(), NewIVFFlatStrategy(), NewSeqScanStrategy()},
		fullScanFloor: defaultFullScanFloor,
		active:        make(map[domain.VectorField]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureIndexes walks the strategy list for both vector fields. The first
// success per field wins; an unsupported or failed strategy falls through
// to the next. It never returns an error: ingestion must not fail because
// index construction is deferred.
func (m *Manager) EnsureIndexes(ctx context.Context) []BuildOutcome {
	var outcomes []BuildOutcome
	for _, field := range []domain.VectorField{domain.FieldSmall, domain.FieldDense} {
		for _, strategy := range m.strategies {
			outcome := strategy.Build(ctx, m.db, field)
			outcomes = append(outcomes, outcome)

			switch outcome.Status {
			case StatusSuccess:
				m.setActive(field, outcome.Strategy)
				m.logger.Info("index_strategy_selected",
					slog.String("field", string(field)),
					slog.String("strategy", outcome.Strategy))
			case StatusUnsupported:
				m.logger.Info("index_strategy_unsupported",
					slog.String("field", string(field)),
					slog.String("strategy", outcome.Strategy),
					slog.String("error", outcome.Err.Error()))
			case StatusFailed:
				m.logger.Warn("index_strategy_failed",
					slog.String("field", string(field)),
					slog.String("strategy", outcome.Strategy),
					slog.String("error", outcome.Err.Error()))
			}
			if outcome.Status == StatusSuccess {
				break
			}
		}
	}
	return outcomes
}

// ActiveStrategy reports the strategy currently serving a field.
func (m *Manager) ActiveStrategy(field domain.VectorField) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.active[field]; ok {
		return s
	}
	return "seqscan"
}

func (m *Manager) setActive(field domain.VectorField, strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[field] = strategy
}

// Search returns up to poolSize candidates for the tenant ordered by
// cosine similarity to vector, over the selected embedding field. The
// profile's planner knobs are applied only above the full-scan floor.
// If the tuned query fails, one untuned retry runs before the error is
// escalated as ErrIndexUnavailable.
func (m *Manager) Search(ctx context.Context, tenantID uuid.UUID, vector []float32, poolSize int, profile domain.ANNRuntimeProfile, field domain.VectorField) ([]domain.Candidate, error) {
	if poolSize <= 0 {
		return nil, domain.NewValidationError("pool_size", "must be positive")
	}

	useKnobs := m.activeRows(ctx) >= m.fullScanFloor
	candidates, err := m.searchOnce(ctx, tenantID, vector, poolSize, profile, field, useKnobs)
	if err == nil {
		return candidates, nil
	}

	m.logger.Warn("tuned_search_failed_retrying_plain",
		slog.String("field", string(field)),
		slog.String("error", err.Error()))

	candidates, retryErr := m.searchOnce(ctx, tenantID, vector, poolSize, profile, field, false)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, retryErr)
	}
	return candidates, nil
}

func (m *Manager) searchOnce(ctx context.Context, tenantID uuid.UUID, vector []float32, poolSize int, profile domain.ANNRuntimeProfile, field domain.VectorField, useKnobs bool) ([]domain.Candidate, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin search tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if useKnobs {
		// SET LOCAL does not take bind parameters; the values are ints
		// from a validated profile.
		switch m.ActiveStrategy(field) {
		case "hnsw":
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", profile.EfSearch)); err != nil {
				return nil, fmt.Errorf("failed to set ef_search: %w", err)
			}
		case "ivfflat":
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", profile.Probes)); err != nil {
				return nil, fmt.Errorf("failed to set probes: %w", err)
			}
		}
	}

	query := fmt.Sprintf(`
		SELECT id, document_id, checksum, content, 1 - (%s <=> $1) AS similarity, created_at
		FROM chunks
		WHERE tenant_id = $2 AND active AND %s IS NOT NULL
		ORDER BY %s <=> $1
		LIMIT $3
	`, field, field, field)

	rows, err := tx.Query(ctx, query, pgvector.NewVector(vector), tenantID, poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}

	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.Checksum, &c.Content, &c.Similarity, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit search tx: %w", err)
	}
	return candidates, nil
}

func (m *Manager) activeRows(ctx context.Context) int64 {
	m.countMu.Lock()
	defer m.countMu.Unlock()

	if time.Since(m.rowCountAge) < rowCountTTL {
		return m.rowCount
	}

	var count int64
	if err := m.db.QueryRow(ctx, "SELECT count(*) FROM chunks WHERE active").Scan(&count); err != nil {
		m.logger.Warn("row_count_refresh_failed", slog.String("error", err.Error()))
		return m.rowCount
	}
	m.rowCount = count
	m.rowCountAge = time.Now()
	return count
}
