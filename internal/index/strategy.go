package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"retrieval-engine/internal/domain"
)

// BuildStatus is the typed outcome of one strategy build attempt.
type BuildStatus int

const (
	// StatusSuccess means the strategy's structure is in place.
	StatusSuccess BuildStatus = iota
	// StatusUnsupported means the backing store cannot provide this
	// structure; the next strategy in the list should be tried.
	StatusUnsupported
	// StatusFailed means the build errored for another reason. Ingestion
	// is never failed over a deferred index build.
	StatusFailed
)

func (s BuildStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "failed"
	}
}

// BuildOutcome records what a strategy did for one vector field.
type BuildOutcome struct {
	Strategy string
	Field    domain.VectorField
	Status   BuildStatus
	Err      error
}

// Strategy builds one ANN structure over a chunk vector column.
type Strategy interface {
	Name() string
	Build(ctx context.Context, db Pool, field domain.VectorField) BuildOutcome
}

// postgres "undefined object" / "feature not supported" codes, raised when
// the pgvector access method is missing or does not cover the operator.
const (
	pgUndefinedObject     = "42704"
	pgFeatureNotSupported = "0A000"
)

func classifyBuildErr(name string, field domain.VectorField, err error) BuildOutcome {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgUndefinedObject || pgErr.Code == pgFeatureNotSupported) {
		return BuildOutcome{Strategy: name, Field: field, Status: StatusUnsupported, Err: err}
	}
	return BuildOutcome{Strategy: name, Field: field, Status: StatusFailed, Err: err}
}

// HNSWStrategy builds a graph-based index. Preferred: better recall/latency
// at query time, costlier to build.
type HNSWStrategy struct {
	M              int
	EfConstruction int
}

// NewHNSWStrategy creates the primary graph index strategy.
func NewHNSWStrategy() *HNSWStrategy {
	return &HNSWStrategy{M: 16, EfConstruction: 64}
}

func (s *HNSWStrategy) Name() string { return "hnsw" }

func (s *HNSWStrategy) Build(ctx context.Context, db Pool, field domain.VectorField) BuildOutcome {
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS chunks_%s_hnsw ON chunks USING hnsw (%s vector_cosine_ops) WITH (m = %d, ef_construction = %d) WHERE active`,
		field, field, s.M, s.EfConstruction,
	)
	if _, err := db.Exec(ctx, stmt); err != nil {
		return classifyBuildErr(s.Name(), field, err)
	}
	return BuildOutcome{Strategy: s.Name(), Field: field, Status: StatusSuccess}
}

// IVFFlatStrategy builds a partition-based index. Fallback when the store
// lacks hnsw support.
type IVFFlatStrategy struct {
	Lists int
}

// NewIVFFlatStrategy creates the fallback partitioned index strategy.
func NewIVFFlatStrategy() *IVFFlatStrategy {
	return &IVFFlatStrategy{Lists: 100}
}

func (s *IVFFlatStrategy) Name() string { return "ivfflat" }

func (s *IVFFlatStrategy) Build(ctx context.Context, db Pool, field domain.VectorField) BuildOutcome {
	stmt := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS chunks_%s_ivfflat ON chunks USING ivfflat (%s vector_cosine_ops) WITH (lists = %d) WHERE active`,
		field, field, s.Lists,
	)
	if _, err := db.Exec(ctx, stmt); err != nil {
		return classifyBuildErr(s.Name(), field, err)
	}
	return BuildOutcome{Strategy: s.Name(), Field: field, Status: StatusSuccess}
}

// SeqScanStrategy is the terminal fallback: no structure at all, searches
// run as full scans. It always succeeds.
type SeqScanStrategy struct{}

// NewSeqScanStrategy creates the full-scan fallback.
func NewSeqScanStrategy() *SeqScanStrategy { return &SeqScanStrategy{} }

func (s *SeqScanStrategy) Name() string { return "seqscan" }

func (s *SeqScanStrategy) Build(ctx context.Context, db Pool, field domain.VectorField) BuildOutcome {
	return BuildOutcome{Strategy: s.Name(), Field: field, Status: StatusSuccess}
}
