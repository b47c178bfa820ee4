package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a user interaction with a chunk.
type EventKind string

const (
	EventImpression EventKind = "impression"
	EventClick      EventKind = "click"
	EventDismiss    EventKind = "dismiss"
	EventUpvote     EventKind = "upvote"
	EventDownvote   EventKind = "downvote"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventImpression, EventClick, EventDismiss, EventUpvote, EventDownvote:
		return true
	}
	return false
}

// InteractionEvent is an immutable, append-only feedback record.
type InteractionEvent struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	ChunkID     uuid.UUID
	Kind        EventKind
	DwellTimeMs *int64
	ActorHash   string
	OccurredAt  time.Time
}

// EngagementSnapshot is a periodically recomputed per-chunk aggregate of
// interaction events. Counts are decay-weighted, so they are fractional.
// Snapshots are rewritten only by the feedback aggregator and published
// with swap-on-completion semantics; readers never observe a partial one.
type EngagementSnapshot struct {
	ChunkID     uuid.UUID
	TenantID    uuid.UUID
	Impressions float64
	Clicks      float64
	CTR         float64
	AvgDwellMs  float64
	Upvotes     float64
	Downvotes   float64
	ComputedAt  time.Time
}

// Signal folds the snapshot into a single engagement value in [0, 1]
// for the fusion formula. CTR dominates; votes adjust it; dismissals are
// carried inside the vote ratio as downvote-equivalents at aggregation.
func (s EngagementSnapshot) Signal() float64 {
	votes := s.Upvotes + s.Downvotes
	voteRatio := 0.5
	if votes > 0 {
		voteRatio = s.Upvotes / votes
	}
	signal := 0.7*s.CTR + 0.3*voteRatio
	if signal < 0 {
		return 0
	}
	if signal > 1 {
		return 1
	}
	return signal
}
