// Package feedstream moves interaction events through Redis Streams so the
// query path can fire-and-forget feedback without touching Postgres.
package feedstream

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"retrieval-engine/internal/domain"
)

const (
	// StreamKey is the Redis stream interaction events travel on.
	StreamKey = "retrieval:interactions"
	// ConsumerGroup is the drain worker's consumer group.
	ConsumerGroup = "interaction-drain"
)

// RedisDriver publishes and consumes interaction events over one stream.
type RedisDriver struct {
	client *redis.Client
}

// NewRedisDriver creates a driver from a redis address.
func NewRedisDriver(addr string) *RedisDriver {
	return &RedisDriver{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// NewRedisDriverWithURL creates a driver from a redis URL.
func NewRedisDriverWithURL(url string) (*RedisDriver, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisDriver{client: redis.NewClient(opts)}, nil
}

// NewRedisDriverWithClient wraps an existing client. Tests use this with
// miniredis.
func NewRedisDriverWithClient(client *redis.Client) *RedisDriver {
	return &RedisDriver{client: client}
}

// Close closes the Redis connection.
func (d *RedisDriver) Close() error {
	return d.client.Close()
}

// Ping checks if Redis is available.
func (d *RedisDriver) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Publish appends one interaction event and returns the message ID.
func (d *RedisDriver) Publish(ctx context.Context, event *domain.InteractionEvent) (string, error) {
	if event == nil {
		return "", errors.New("event is nil")
	}
	return d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: eventToValues(event),
	}).Result()
}

// PublishBatch appends multiple events through one pipeline.
func (d *RedisDriver) PublishBatch(ctx context.Context, events []domain.InteractionEvent) ([]string, error) {
	if len(events) == 0 {
		return []string{}, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(events))
	for i := range events {
		cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: StreamKey,
			Values: eventToValues(&events[i]),
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	ids := make([]string, len(cmds))
	for i, cmd := range cmds {
		ids[i] = cmd.Val()
	}
	return ids, nil
}

// EnsureGroup creates the drain consumer group, tolerating an existing one.
func (d *RedisDriver) EnsureGroup(ctx context.Context) error {
	err := d.client.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// Batch is one consumed slice of events with the message IDs to ack.
type Batch struct {
	Events     []domain.InteractionEvent
	MessageIDs []string
}

// ReadBatch blocks up to block for up to count events for this consumer.
// An empty batch with nil error means the block expired quietly.
func (d *RedisDriver) ReadBatch(ctx context.Context, consumer string, count int64, block time.Duration) (Batch, error) {
	streams, err := d.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: consumer,
		Streams:  []string{StreamKey, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Batch{}, nil
		}
		return Batch{}, err
	}

	var batch Batch
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			event, err := eventFromValues(msg.Values)
			if err != nil {
				// Malformed entries are acked away rather than poisoning
				// the drain loop.
				batch.MessageIDs = append(batch.MessageIDs, msg.ID)
				continue
			}
			batch.Events = append(batch.Events, event)
			batch.MessageIDs = append(batch.MessageIDs, msg.ID)
		}
	}
	return batch, nil
}

// Ack acknowledges drained message IDs.
func (d *RedisDriver) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return d.client.XAck(ctx, StreamKey, ConsumerGroup, ids...).Err()
}

func eventToValues(event *domain.InteractionEvent) map[string]interface{} {
	values := map[string]interface{}{
		"event_id":    event.ID.String(),
		"tenant_id":   event.TenantID.String(),
		"chunk_id":    event.ChunkID.String(),
		"event_type":  string(event.Kind),
		"actor_hash":  event.ActorHash,
		"occurred_at": event.OccurredAt.Format(time.RFC3339Nano),
	}
	if event.DwellTimeMs != nil {
		values["dwell_time_ms"] = strconv.FormatInt(*event.DwellTimeMs, 10)
	}
	return values
}

func eventFromValues(values map[string]interface{}) (domain.InteractionEvent, error) {
	var event domain.InteractionEvent

	id, err := uuid.Parse(stringValue(values, "event_id"))
	if err != nil {
		return event, errors.New("invalid event_id")
	}
	tenantID, err := uuid.Parse(stringValue(values, "tenant_id"))
	if err != nil {
		return event, errors.New("invalid tenant_id")
	}
	chunkID, err := uuid.Parse(stringValue(values, "chunk_id"))
	if err != nil {
		return event, errors.New("invalid chunk_id")
	}
	kind := domain.EventKind(stringValue(values, "event_type"))
	if !kind.Valid() {
		return event, errors.New("invalid event_type")
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, stringValue(values, "occurred_at"))
	if err != nil {
		return event, errors.New("invalid occurred_at")
	}

	event = domain.InteractionEvent{
		ID:         id,
		TenantID:   tenantID,
		ChunkID:    chunkID,
		Kind:       kind,
		ActorHash:  stringValue(values, "actor_hash"),
		OccurredAt: occurredAt,
	}

	if raw := stringValue(values, "dwell_time_ms"); raw != "" {
		dwell, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return event, errors.New("invalid dwell_time_ms")
		}
		event.DwellTimeMs = &dwell
	}
	return event, nil
}

func stringValue(values map[string]interface{}, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
