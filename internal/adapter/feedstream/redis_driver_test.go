package feedstream

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrieval-engine/internal/domain"
)

func setupTestDriver(t *testing.T) (*RedisDriver, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	driver := NewRedisDriverWithClient(client)

	return driver, func() {
		_ = driver.Close()
		mr.Close()
	}
}

func makeEvent(kind domain.EventKind) domain.InteractionEvent {
	return domain.InteractionEvent{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		ChunkID:    uuid.New(),
		Kind:       kind,
		ActorHash:  "actor-1",
		OccurredAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestRedisDriver_Publish(t *testing.T) {
	t.Run("publishes event to stream", func(t *testing.T) {
		driver, cleanup := setupTestDriver(t)
		defer cleanup()

		event := makeEvent(domain.EventClick)
		messageID, err := driver.Publish(context.Background(), &event)

		require.NoError(t, err)
		assert.NotEmpty(t, messageID)
		assert.Contains(t, messageID, "-")
	})

	t.Run("returns error for nil event", func(t *testing.T) {
		driver, cleanup := setupTestDriver(t)
		defer cleanup()

		_, err := driver.Publish(context.Background(), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "event is nil")
	})
}

func TestRedisDriver_PublishBatch(t *testing.T) {
	t.Run("publishes multiple events to stream", func(t *testing.T) {
		driver, cleanup := setupTestDriver(t)
		defer cleanup()

		events := []domain.InteractionEvent{
			makeEvent(domain.EventImpression),
			makeEvent(domain.EventClick),
		}

		messageIDs, err := driver.PublishBatch(context.Background(), events)

		require.NoError(t, err)
		assert.Len(t, messageIDs, 2)
		for _, id := range messageIDs {
			assert.NotEmpty(t, id)
		}
	})

	t.Run("returns empty slice for empty events", func(t *testing.T) {
		driver, cleanup := setupTestDriver(t)
		defer cleanup()

		messageIDs, err := driver.PublishBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, messageIDs)
	})
}

func TestRedisDriver_EnsureGroup(t *testing.T) {
	t.Run("creates group and tolerates re-creation", func(t *testing.T) {
		driver, cleanup := setupTestDriver(t)
		defer cleanup()

		ctx := context.Background()
		require.NoError(t, driver.EnsureGroup(ctx))
		require.NoError(t, driver.EnsureGroup(ctx), "BUSYGROUP should be swallowed")
	})
}

func TestRedisDriver_ReadBatchRoundTrip(t *testing.T) {
	driver, cleanup := setupTestDriver(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, driver.EnsureGroup(ctx))

	dwell := int64(4200)
	published := makeEvent(domain.EventClick)
	published.DwellTimeMs = &dwell
	_, err := driver.Publish(ctx, &published)
	require.NoError(t, err)

	batch, err := driver.ReadBatch(ctx, "consumer-1", 10, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, batch.Events, 1)
	require.Len(t, batch.MessageIDs, 1)

	got := batch.Events[0]
	assert.Equal(t, published.ID, got.ID)
	assert.Equal(t, published.TenantID, got.TenantID)
	assert.Equal(t, published.ChunkID, got.ChunkID)
	assert.Equal(t, domain.EventClick, got.Kind)
	assert.Equal(t, "actor-1", got.ActorHash)
	require.NotNil(t, got.DwellTimeMs)
	assert.Equal(t, dwell, *got.DwellTimeMs)
	assert.True(t, published.OccurredAt.Equal(got.OccurredAt))

	require.NoError(t, driver.Ack(ctx, batch.MessageIDs...))

	// Acked messages are not redelivered.
	again, err := driver.ReadBatch(ctx, "consumer-1", 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, again.Events)
}

func TestRedisDriver_ReadBatchSkipsMalformedEntries(t *testing.T) {
	driver, cleanup := setupTestDriver(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, driver.EnsureGroup(ctx))

	err := driver.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		Values: map[string]interface{}{"event_id": "not-a-uuid"},
	}).Err()
	require.NoError(t, err)

	good := makeEvent(domain.EventUpvote)
	_, err = driver.Publish(ctx, &good)
	require.NoError(t, err)

	batch, err := driver.ReadBatch(ctx, "consumer-1", 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Len(t, batch.Events, 1, "malformed entry should be dropped")
	assert.Len(t, batch.MessageIDs, 2, "malformed entry is still acked away")
}
