package usecase

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/google/uuid"

	"retrieval-engine/internal/domain"
)

// QueryState is the coordinator state machine position for one query.
type QueryState string

const (
	StateInit      QueryState = "INIT"
	StatePhase0    QueryState = "PHASE0"
	StatePhase1    QueryState = "PHASE1"
	StatePhase2    QueryState = "PHASE2"
	StateDone      QueryState = "DONE"
	StateError     QueryState = "ERROR"
	StateTimeout   QueryState = "TIMEOUT"
	StateCancelled QueryState = "CANCELLED"
)

// Phase tags one emitted refinement step.
type Phase string

const (
	// PhaseCoarse is the raw-similarity list, emitted as fast as the ANN
	// probe allows.
	PhaseCoarse Phase = "P0"
	// PhaseFused is the fusion-ranked list, still provisional.
	PhaseFused Phase = "P1"
	// PhaseFinal is the fully adjusted, non-provisional list.
	PhaseFinal Phase = "P2"
	// PhaseTerminal closes the stream with the terminal state.
	PhaseTerminal Phase = "END"
)

// QueryInput is one streaming retrieval request.
type QueryInput struct {
	TenantID    uuid.UUID
	Query       string
	QueryVector []float32
	// DenseVector optionally enables the PHASE2 dense re-scoring pass.
	DenseVector []float32
	K           int
}

// QueryResult is one ranked chunk in a phase message.
type QueryResult struct {
	ChunkID    uuid.UUID `json:"chunk_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Score      float64   `json:"score"`
	Text       string    `json:"text"`
}

// StreamEvent is one phase message. Re-delivery is safe: the phase tag
// plus the per-query monotonic sequence number let a client discard
// duplicates.
type StreamEvent struct {
	Phase       Phase             `json:"phase"`
	Sequence    uint64            `json:"sequence"`
	Provisional bool              `json:"provisional"`
	Degraded    bool              `json:"degraded"`
	Results     []QueryResult     `json:"results,omitempty"`
	State       QueryState        `json:"state,omitempty"`
	Reason      domain.ReasonCode `json:"reason,omitempty"`
}

// queryHash keys performance telemetry by the query and tenant, so one
// logical query maps to one performance record.
func queryHash(in QueryInput) string {
	h := sha256.New()
	h.Write(in.TenantID[:])
	h.Write([]byte(in.Query))
	var buf [4]byte
	for _, v := range in.QueryVector {
		binary.LittleEndian.PutUint32(buf[:], uint32(int32(v*1e6)))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// snapshotHash extends the query hash with the ranked candidate set.
// Feature snapshots are deduplicated on this key, so the same query run
// against a changed corpus still records its new feature matrix.
func snapshotHash(base string, ranked []RankedCandidate) string {
	h := sha256.New()
	h.Write([]byte(base))
	for _, c := range ranked {
		h.Write([]byte(c.Candidate.Checksum))
	}
	return hex.EncodeToString(h.Sum(nil))
}
