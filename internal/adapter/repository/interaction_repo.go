package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retrieval-engine/internal/domain"
)

type interactionRepository struct {
	pool Pool
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(pool Pool) domain.InteractionRepository {
	return &interactionRepository{pool: pool}
}

func (r *interactionRepository) InsertEvents(ctx context.Context, events []domain.InteractionEvent) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(events))
	for i, ev := range events {
		rows[i] = []interface{}{
			ev.ID, ev.TenantID, ev.ChunkID, string(ev.Kind), ev.DwellTimeMs, ev.ActorHash, ev.OccurredAt,
		}
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"interaction_events"},
		[]string{"id", "tenant_id", "chunk_id", "event_type", "dwell_ms", "actor_hash", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction events: %w", err)
	}
	return nil
}

// AggregateDecayed weighs each event by exp(-ln(2) * age / halfLife) so
// stale popularity fades instead of dominating forever. Dismissals count
// as half a downvote.
func (r *interactionRepository) AggregateDecayed(ctx context.Context, halfLife time.Duration, now time.Time) ([]domain.EngagementSnapshot, error) {
	query := `
		SELECT chunk_id, tenant_id,
			COALESCE(SUM(w) FILTER (WHERE event_type = 'impression'), 0) AS impressions,
			COALESCE(SUM(w) FILTER (WHERE event_type = 'click'), 0) AS clicks,
			COALESCE(SUM(w) FILTER (WHERE event_type = 'upvote'), 0) AS upvotes,
			COALESCE(SUM(w) FILTER (WHERE event_type = 'downvote'), 0)
				+ COALESCE(SUM(w * 0.5) FILTER (WHERE event_type = 'dismiss'), 0) AS downvotes,
			COALESCE(
				SUM(w * dwell_ms) FILTER (WHERE event_type = 'click' AND dwell_ms IS NOT NULL)
					/ NULLIF(SUM(w) FILTER (WHERE event_type = 'click' AND dwell_ms IS NOT NULL), 0),
				0) AS avg_dwell_ms
		FROM (
			SELECT chunk_id, tenant_id, event_type, dwell_ms,
				exp(-ln(2) * GREATEST(EXTRACT(EPOCH FROM ($2::timestamptz - occurred_at)), 0) / $1) AS w
			FROM interaction_events
		) weighted
		GROUP BY chunk_id, tenant_id
	`
	rows, err := r.pool.Query(ctx, query, halfLife.Seconds(), now)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate interaction events: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.EngagementSnapshot
	for rows.Next() {
		var s domain.EngagementSnapshot
		if err := rows.Scan(&s.ChunkID, &s.TenantID, &s.Impressions, &s.Clicks, &s.Upvotes, &s.Downvotes, &s.AvgDwellMs); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		// CTR is 0 when there are no impressions, never a division error.
		if s.Impressions > 0 {
			s.CTR = s.Clicks / s.Impressions
			if s.CTR > 1 {
				s.CTR = 1
			}
		}
		s.ComputedAt = now
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return snapshots, nil
}

func (r *interactionRepository) ReplaceSnapshots(ctx context.Context, snapshots []domain.EngagementSnapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE engagement_snapshots`); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}

	if len(snapshots) > 0 {
		rows := make([][]interface{}, len(snapshots))
		for i, s := range snapshots {
			rows[i] = []interface{}{
				s.ChunkID, s.TenantID, s.Impressions, s.Clicks, s.CTR, s.AvgDwellMs, s.Upvotes, s.Downvotes, s.ComputedAt,
			}
		}
		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"engagement_snapshots"},
			[]string{"chunk_id", "tenant_id", "impressions", "clicks", "ctr", "avg_dwell_ms", "upvotes", "downvotes", "computed_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot tx: %w", err)
	}
	return nil
}
