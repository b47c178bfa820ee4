package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/infra/logger"
)

// variantReranker is satisfied by rerank clients that can rebind to the
// model variant an experiment pinned.
type variantReranker interface {
	WithModel(model string) domain.Reranker
}

// CandidateSearcher answers the coarse ANN probe. The index manager
// satisfies it; tests substitute a stub.
type CandidateSearcher interface {
	Search(ctx context.Context, tenantID uuid.UUID, vector []float32, poolSize int, profile domain.ANNRuntimeProfile, field domain.VectorField) ([]domain.Candidate, error)
}

// StreamQueryUsecase runs one retrieval query as a progressive stream:
// a fast raw-similarity list first, then a fusion-ranked refinement, then
// the final adjusted list.
type StreamQueryUsecase interface {
	// Stream validates the input synchronously; a non-nil error means no
	// stream was opened. The returned channel is closed after the
	// terminal event.
	Stream(ctx context.Context, input QueryInput) (<-chan StreamEvent, error)
}

type streamQueryUsecase struct {
	searcher  CandidateSearcher
	assembler FeatureAssembler
	resolver  *RegistryResolver
	reranker  domain.Reranker
	chunkRepo domain.ChunkRepository
	telemetry *TelemetryRecorder
	config    PipelineConfig
	logs      *logger.ContextLogger
}

// NewStreamQueryUsecase wires the streaming coordinator.
func NewStreamQueryUsecase(
	searcher CandidateSearcher,
	assembler FeatureAssembler,
	resolver *RegistryResolver,
	reranker domain.Reranker,
	chunkRepo domain.ChunkRepository,
	telemetry *TelemetryRecorder,
	config PipelineConfig,
	log *slog.Logger,
) StreamQueryUsecase {
	return &streamQueryUsecase{
		searcher:  searcher,
		assembler: assembler,
		resolver:  resolver,
		reranker:  reranker,
		chunkRepo: chunkRepo,
		telemetry: telemetry,
		config:    config,
		logs:      logger.NewContextLogger(log),
	}
}

func (u *streamQueryUsecase) Stream(ctx context.Context, input QueryInput) (<-chan StreamEvent, error) {
	if input.TenantID == uuid.Nil {
		return nil, domain.NewValidationError("tenant_id", "is required")
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewValidationError("query", "is required")
	}
	if len(input.QueryVector) == 0 {
		return nil, domain.NewValidationError("query_vector", "is required")
	}
	if input.K <= 0 {
		return nil, domain.NewValidationError("k", "must be positive")
	}
	if input.K > u.config.MaxResults {
		input.K = u.config.MaxResults
	}

	events := make(chan StreamEvent, 4)
	go u.run(ctx, input, events)
	return events, nil
}

// queryRun carries the per-query mutable state across phases.
type queryRun struct {
	input    QueryInput
	hash     string
	started  time.Time
	weights  domain.ScoringWeightSet
	seq      uint64
	degraded bool
	timedOut bool
	ranked   []RankedCandidate
}

func (u *streamQueryUsecase) run(ctx context.Context, input QueryInput, events chan<- StreamEvent) {
	defer close(events)

	run := &queryRun{
		input:   input,
		hash:    queryHash(input),
		started: time.Now(),
	}
	ctx = logger.WithTenantID(ctx, input.TenantID.String())
	ctx = logger.WithQueryHash(ctx, run.hash)
	run.weights = u.resolver.ResolveWeights(ctx, input.TenantID)
	profile := u.resolver.ResolveProfile(ctx, input.TenantID)

	candidates, terminal := u.phase0(ctx, run, profile, events)
	if terminal != "" {
		u.finish(ctx, run, terminal, events)
		return
	}

	if !u.phase1(ctx, run, candidates, events) {
		u.finish(ctx, run, StateCancelled, events)
		return
	}

	if !u.phase2(ctx, run, events) {
		u.finish(ctx, run, StateCancelled, events)
		return
	}

	u.finish(ctx, run, StateDone, events)
}

// phase0 runs the coarse ANN probe and emits the raw-similarity list.
// A non-empty terminal state means the query is over.
func (u *streamQueryUsecase) phase0(ctx context.Context, run *queryRun, profile domain.ANNRuntimeProfile, events chan<- StreamEvent) ([]domain.Candidate, QueryState) {
	phaseCtx, cancel := context.WithTimeout(logger.WithPipelineStage(ctx, "phase0"), u.config.Deadlines.Phase0)
	defer cancel()

	pool := profile.CandidatePool(run.input.K)
	candidates, err := u.searcher.Search(phaseCtx, run.input.TenantID, run.input.QueryVector, pool, profile, domain.FieldSmall)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return nil, StateCancelled
		case errors.Is(err, domain.ErrIndexUnavailable):
			u.logs.WithContext(phaseCtx).Error("coarse_search_failed",
				slog.String("error", err.Error()))
			return nil, StateError
		case phaseCtx.Err() != nil:
			// Nothing went out yet, so there is no best-so-far to serve.
			run.timedOut = true
			return nil, StateTimeout
		default:
			u.logs.WithContext(phaseCtx).Error("coarse_search_failed",
				slog.String("error", err.Error()))
			return nil, StateError
		}
	}

	if !u.emit(ctx, events, StreamEvent{
		Phase:       PhaseCoarse,
		Sequence:    run.nextSeq(),
		Provisional: true,
		Results:     resultsFromCandidates(candidates, run.input.K),
		State:       StatePhase0,
	}) {
		return nil, StateCancelled
	}
	return candidates, ""
}

// phase1 assembles features, applies the rerank term, and emits the
// fusion-ranked provisional list. Returns false only on cancellation.
func (u *streamQueryUsecase) phase1(ctx context.Context, run *queryRun, candidates []domain.Candidate, events chan<- StreamEvent) bool {
	phaseCtx, cancel := context.WithTimeout(logger.WithPipelineStage(ctx, "phase1"), u.config.Deadlines.Phase1)
	defer cancel()

	features, err := u.assembleOnce(phaseCtx, run, candidates)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		// Degrade to similarity-only features rather than dropping the
		// candidates the client already saw.
		u.logs.WithContext(phaseCtx).Warn("feature_assembly_degraded",
			slog.String("error", err.Error()))
		features = similarityOnlyFeatures(candidates)
		run.markDegraded(phaseCtx)
	}

	run.ranked = make([]RankedCandidate, len(candidates))
	for i, c := range candidates {
		run.ranked[i] = RankedCandidate{Candidate: c, Features: features[i]}
	}

	if u.config.Rerank.Enabled && u.reranker != nil {
		u.applyRerank(phaseCtx, run)
	}

	if err := RankCandidates(run.ranked, run.weights); err != nil {
		// Stale shape: recompute the features once with the current
		// assembler, then fall back to similarity-only.
		features, aerr := u.assembleOnce(phaseCtx, run, candidates)
		if aerr != nil {
			features = similarityOnlyFeatures(candidates)
			run.markDegraded(phaseCtx)
		}
		for i := range run.ranked {
			run.ranked[i].Features = features[i]
		}
		if err := RankCandidates(run.ranked, run.weights); err != nil {
			u.logs.WithContext(phaseCtx).Error("fusion_ranking_failed",
				slog.String("error", err.Error()))
			sortRanked(run.ranked)
			run.degraded = true
		}
	}

	state := StatePhase1
	if run.timedOut {
		state = StateTimeout
	}
	return u.emit(ctx, events, StreamEvent{
		Phase:       PhaseFused,
		Sequence:    run.nextSeq(),
		Provisional: true,
		Degraded:    run.degraded,
		Results:     resultsFromRanked(run.ranked, run.input.K),
		State:       state,
	})
}

// phase2 blends the dense second-pass similarity, applies adjacency
// diversity, and emits the final list. Returns false only on cancellation.
func (u *streamQueryUsecase) phase2(ctx context.Context, run *queryRun, events chan<- StreamEvent) bool {
	phaseCtx, cancel := context.WithTimeout(logger.WithPipelineStage(ctx, "phase2"), u.config.Deadlines.Phase2)
	defer cancel()

	if u.config.DenseRescore.Enabled && len(run.input.DenseVector) > 0 {
		if err := u.denseRescore(phaseCtx, run); err != nil {
			if ctx.Err() != nil {
				return false
			}
			u.logs.WithContext(phaseCtx).Warn("dense_rescore_degraded",
				slog.String("error", err.Error()))
			run.markDegraded(phaseCtx)
		}
	}

	run.ranked = ApplyDiversity(run.ranked)

	state := StatePhase2
	if run.timedOut {
		state = StateTimeout
	}
	return u.emit(ctx, events, StreamEvent{
		Phase:    PhaseFinal,
		Sequence: run.nextSeq(),
		Degraded: run.degraded,
		Results:  resultsFromRanked(run.ranked, run.input.K),
		State:    state,
	})
}

func (u *streamQueryUsecase) assembleOnce(ctx context.Context, run *queryRun, candidates []domain.Candidate) ([]domain.FeatureVector, error) {
	features, err := u.assembler.Assemble(ctx, run.input.TenantID, candidates)
	if err != nil {
		return nil, err
	}
	return features, nil
}

// applyRerank requests model scores for the similarity-leading candidates
// under its own timeout. Any failure zeroes the rerank term and marks the
// response degraded.
func (u *streamQueryUsecase) applyRerank(ctx context.Context, run *queryRun) {
	limit := u.config.Rerank.MaxCandidates
	ordered := append([]RankedCandidate(nil), run.ranked...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Candidate.Similarity > ordered[j].Candidate.Similarity
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	reqs := make([]domain.RerankCandidate, len(ordered))
	for i, c := range ordered {
		reqs[i] = domain.RerankCandidate{
			ID:      c.Candidate.ChunkID.String(),
			Content: c.Candidate.Content,
			Score:   float32(c.Candidate.Similarity),
		}
	}

	reranker := u.reranker
	if run.weights.ModelVariant != "" {
		if v, ok := reranker.(variantReranker); ok {
			reranker = v.WithModel(run.weights.ModelVariant)
		}
	}

	rerankCtx, cancel := context.WithTimeout(logger.WithPipelineStage(ctx, "rerank"), u.config.Rerank.Timeout)
	defer cancel()

	results, err := reranker.Rerank(rerankCtx, run.input.Query, reqs)
	if err != nil {
		u.logs.WithContext(rerankCtx).Warn("rerank_degraded",
			slog.String("model", reranker.ModelName()),
			slog.String("error", err.Error()))
		run.markDegraded(ctx)
		return
	}

	scores := make(map[string]float64, len(results))
	for _, r := range results {
		scores[r.ID] = float64(r.Score)
	}
	for i := range run.ranked {
		run.ranked[i].RerankScore = scores[run.ranked[i].Candidate.ChunkID.String()]
	}
}

// denseRescore loads the dense vectors for the current candidates, blends
// their similarity into the feature, and re-runs fusion ranking.
func (u *streamQueryUsecase) denseRescore(ctx context.Context, run *queryRun) error {
	ids := make([]uuid.UUID, len(run.ranked))
	for i, c := range run.ranked {
		ids[i] = c.Candidate.ChunkID
	}

	vectors, err := u.chunkRepo.FetchDenseVectors(ctx, run.input.TenantID, ids)
	if err != nil {
		return err
	}

	dense := make(map[string]float64, len(vectors))
	for id, vec := range vectors {
		dense[id.String()] = cosineSimilarity(run.input.DenseVector, vec)
	}

	BlendDenseSimilarity(run.ranked, dense, u.config.DenseRescore.Alpha)
	return RankCandidates(run.ranked, run.weights)
}

// finish emits the terminal event and records telemetry. The performance
// record is written for every terminal state except cancellation, where
// nobody is listening for the answer anyway.
func (u *streamQueryUsecase) finish(ctx context.Context, run *queryRun, state QueryState, events chan<- StreamEvent) {
	event := StreamEvent{
		Phase:    PhaseTerminal,
		Sequence: run.nextSeq(),
		Degraded: run.degraded,
		State:    state,
	}
	if state == StateError {
		event.Reason = domain.ReasonIndexUnavailable
	}
	u.emit(ctx, events, event)

	if state == StateCancelled {
		return
	}

	u.telemetry.RecordQuery(domain.QueryPerformanceRecord{
		ID:             uuid.New(),
		TenantID:       run.input.TenantID,
		QueryHash:      run.hash,
		LatencyMs:      time.Since(run.started).Milliseconds(),
		CandidateCount: len(run.ranked),
		Degraded:       run.degraded || state != StateDone,
		CreatedAt:      time.Now(),
	})

	if state == StateDone && len(run.ranked) > 0 {
		features := make([]domain.FeatureVector, len(run.ranked))
		for i, c := range run.ranked {
			features[i] = c.Features
		}
		u.telemetry.MaybeRecordSnapshot(domain.FeatureSnapshot{
			ID:        uuid.New(),
			TenantID:  run.input.TenantID,
			QueryHash: snapshotHash(run.hash, run.ranked),
			Features:  features,
			Weights:   run.weights,
			CreatedAt: time.Now(),
		})
	}
}

func (u *streamQueryUsecase) emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}

func (r *queryRun) nextSeq() uint64 {
	r.seq++
	return r.seq
}

// markDegraded flags the run and, when the phase deadline is what fired,
// also records the timeout for the stream state.
func (r *queryRun) markDegraded(phaseCtx context.Context) {
	r.degraded = true
	if errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		r.timedOut = true
	}
}

func similarityOnlyFeatures(candidates []domain.Candidate) []domain.FeatureVector {
	now := time.Now()
	features := make([]domain.FeatureVector, len(candidates))
	for i, c := range candidates {
		features[i] = domain.FeatureVector{
			SchemaVersion: domain.FeatureSchemaVersion,
			ChunkID:       c.ChunkID,
			Checksum:      c.Checksum,
			Similarity:    c.Similarity,
			AgeHours:      now.Sub(c.CreatedAt).Hours(),
		}
	}
	return features
}

func resultsFromCandidates(candidates []domain.Candidate, k int) []QueryResult {
	ordered := append([]domain.Candidate(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Similarity != ordered[j].Similarity {
			return ordered[i].Similarity > ordered[j].Similarity
		}
		return ordered[i].Checksum < ordered[j].Checksum
	})
	if len(ordered) > k {
		ordered = ordered[:k]
	}
	results := make([]QueryResult, len(ordered))
	for i, c := range ordered {
		results[i] = QueryResult{
			ChunkID:    c.ChunkID,
			DocumentID: c.DocumentID,
			Score:      c.Similarity,
			Text:       c.Content,
		}
	}
	return results
}

func resultsFromRanked(ranked []RankedCandidate, k int) []QueryResult {
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	results := make([]QueryResult, len(ranked))
	for i, c := range ranked {
		results[i] = QueryResult{
			ChunkID:    c.Candidate.ChunkID,
			DocumentID: c.Candidate.DocumentID,
			Score:      c.Score,
			Text:       c.Candidate.Content,
		}
	}
	return results
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
