package usecase

import (
	"errors"
	"math"
	"sort"
	"time"

	"retrieval-engine/internal/domain"
)

// ErrStaleFeatureSchema means the feature vectors were produced by an
// older assembler shape. Callers should recompute features instead of
// scoring them.
var ErrStaleFeatureSchema = errors.New("feature vectors have a stale schema version")

// RankedCandidate is a candidate with its features and fused score.
type RankedCandidate struct {
	Candidate   domain.Candidate
	Features    domain.FeatureVector
	RerankScore float64
	Score       float64
}

// halfLifeDecay returns exp(-ln2 * age/halfLife): 1.0 at age zero, 0.5 at
// one half-life.
func halfLifeDecay(age, halfLife time.Duration) float64 {
	if halfLife <= 0 {
		return 1
	}
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * float64(age) / float64(halfLife))
}

// FusionScore computes the weighted sum of the four ranking signals.
// It is pure: identical inputs always produce the identical score, which
// keeps persisted feature snapshots replayable.
func FusionScore(f domain.FeatureVector, rerank float64, weights domain.ScoringWeightSet) float64 {
	recency := halfLifeDecay(time.Duration(f.AgeHours*float64(time.Hour)), weights.RecencyHalfLife)
	return weights.SimilarityWeight*f.Similarity +
		weights.RerankWeight*rerank +
		weights.EngagementWeight*f.Engagement +
		weights.AuthorityWeight*(f.Authority*recency)
}

// RankCandidates scores and orders candidates in place: final score
// descending, ties broken by chunk checksum ascending so repeated runs
// over frozen inputs produce the identical order.
func RankCandidates(candidates []RankedCandidate, weights domain.ScoringWeightSet) error {
	for i := range candidates {
		if candidates[i].Features.SchemaVersion != domain.FeatureSchemaVersion {
			return ErrStaleFeatureSchema
		}
	}
	for i := range candidates {
		candidates[i].Score = FusionScore(candidates[i].Features, candidates[i].RerankScore, weights)
	}
	sortRanked(candidates)
	return nil
}

func sortRanked(candidates []RankedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Candidate.Checksum < candidates[j].Candidate.Checksum
	})
}

// ApplyDiversity reorders the ranked list so no two adjacent results come
// from the same document, moving the highest-ranked eligible candidate
// into each slot. When only same-document candidates remain they are
// appended in rank order; correctness of the top result is never traded
// away.
func ApplyDiversity(ranked []RankedCandidate) []RankedCandidate {
	if len(ranked) < 3 {
		return ranked
	}

	out := make([]RankedCandidate, 0, len(ranked))
	remaining := append([]RankedCandidate(nil), ranked...)

	for len(remaining) > 0 {
		pick := 0
		if len(out) > 0 {
			prevDoc := out[len(out)-1].Candidate.DocumentID
			pick = -1
			for i, c := range remaining {
				if c.Candidate.DocumentID != prevDoc {
					pick = i
					break
				}
			}
			if pick == -1 {
				pick = 0
			}
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// BlendDenseSimilarity folds second-pass dense similarities into the
// similarity feature at the given alpha. Candidates without a dense
// vector keep their coarse similarity.
func BlendDenseSimilarity(candidates []RankedCandidate, dense map[string]float64, alpha float64) {
	for i := range candidates {
		if d, ok := dense[candidates[i].Candidate.ChunkID.String()]; ok {
			small := candidates[i].Features.Similarity
			candidates[i].Features.Similarity = (1-alpha)*small + alpha*d
		}
	}
}
