package domain

import "context"

// RerankCandidate is one chunk submitted to the external re-ranking model.
type RerankCandidate struct {
	// ID is the chunk id, used to map scores back to candidates.
	ID string
	// Content is the text scored against the query.
	Content string
	// Score is the initial retrieval score (for logging).
	Score float32
}

// RerankResult is a candidate with its model relevance score.
type RerankResult struct {
	// ID matches the candidate ID.
	ID string
	// Score is the model relevance score (typically 0.0 to 1.0).
	Score float32
}

// Reranker is the external model collaborator. It must honor the caller's
// deadline; on error or timeout callers zero the rerank term and mark the
// response degraded instead of failing the query.
type Reranker interface {
	// Rerank scores candidates against the query.
	// Returns results sorted by score descending.
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging.
	ModelName() string
}
