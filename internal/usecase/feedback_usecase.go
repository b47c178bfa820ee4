package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"retrieval-engine/internal/domain"
	"retrieval-engine/internal/metrics"
)

// EventPublisher is the stream side of the feedback path. The Redis
// driver satisfies it.
type EventPublisher interface {
	PublishBatch(ctx context.Context, events []domain.InteractionEvent) ([]string, error)
}

// FeedbackUsecase accepts interaction events from clients. Events are
// validated, stamped, and handed to the stream; persistence and
// aggregation happen downstream.
type FeedbackUsecase interface {
	RecordEvents(ctx context.Context, events []domain.InteractionEvent) error
}

type feedbackUsecase struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewFeedbackUsecase creates the feedback ingestion usecase.
func NewFeedbackUsecase(publisher EventPublisher, logger *slog.Logger) FeedbackUsecase {
	return &feedbackUsecase{publisher: publisher, logger: logger}
}

func (u *feedbackUsecase) RecordEvents(ctx context.Context, events []domain.InteractionEvent) error {
	if len(events) == 0 {
		return domain.NewValidationError("events", "at least one event is required")
	}

	now := time.Now()
	for i := range events {
		e := &events[i]
		if e.TenantID == uuid.Nil {
			return domain.NewValidationError("tenant_id", "is required")
		}
		if e.ChunkID == uuid.Nil {
			return domain.NewValidationError("chunk_id", "is required")
		}
		if !e.Kind.Valid() {
			return domain.NewValidationError("event_type", fmt.Sprintf("unknown kind %q", e.Kind))
		}
		if e.DwellTimeMs != nil && *e.DwellTimeMs < 0 {
			return domain.NewValidationError("dwell_time_ms", "must be non-negative")
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = now
		}
	}

	if _, err := u.publisher.PublishBatch(ctx, events); err != nil {
		return fmt.Errorf("failed to publish interaction events: %w", err)
	}

	for i := range events {
		metrics.RecordFeedback(string(events[i].Kind))
	}
	u.logger.Debug("interaction_events_accepted", slog.Int("count", len(events)))
	return nil
}
