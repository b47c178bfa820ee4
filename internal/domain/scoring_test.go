package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"retrieval-engine/internal/domain"
)

func TestCandidatePool_ClampsToProfileBounds(t *testing.T) {
	profile := domain.ANNRuntimeProfile{MinCandidates: 20, MaxCandidates: 200}

	assert.Equal(t, 20, profile.CandidatePool(1), "small k is lifted to the floor")
	assert.Equal(t, 40, profile.CandidatePool(10))
	assert.Equal(t, 200, profile.CandidatePool(100), "large k is capped at the ceiling")
}

func TestScoringWeightSet_Validate(t *testing.T) {
	valid := domain.DefaultWeightSet(uuid.New())
	assert.NoError(t, valid.Validate())

	negative := valid
	negative.RerankWeight = -0.1
	assert.Error(t, negative.Validate())

	allZero := domain.ScoringWeightSet{RecencyHalfLife: time.Hour}
	assert.Error(t, allZero.Validate())

	noHalfLife := valid
	noHalfLife.RecencyHalfLife = 0
	assert.Error(t, noHalfLife.Validate())
}

func TestEngagementSignal(t *testing.T) {
	tests := []struct {
		name     string
		snapshot domain.EngagementSnapshot
		want     float64
	}{
		{"no activity defaults to neutral votes", domain.EngagementSnapshot{}, 0.15},
		{"perfect ctr and votes", domain.EngagementSnapshot{CTR: 1, Upvotes: 4}, 1.0},
		{"all downvotes", domain.EngagementSnapshot{CTR: 0.5, Downvotes: 3}, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.snapshot.Signal(), 1e-9)
		})
	}
}
