package postgres

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jsgaviriam/checkout/internal/domain"
)

func TestOutboxRepository_EnqueuePullMark(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "transaction",
		AggregateID:   "tx-outbox-1",
		EventType:     "transaction.finalized",
		Payload:       json.RawMessage(`{"status":"APPROVED"}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "transaction",
		AggregateID:   "tx-outbox-2",
		EventType:     "stock.decremented",
		Payload:       json.RawMessage(`{"product_id":"product-1"}`),
	})
	require.NoError(t, err)

	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, second.ID, pending[1].ID)
	require.JSONEq(t, `{"status":"APPROVED"}`, string(pending[0].Payload))

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())
	require.WithinDuration(t, time.Now().UTC(), stats.OldestPendingAt, time.Minute)

	require.NoError(t, repo.MarkSent(first.ID))
	require.NoError(t, repo.MarkFailed(second.ID))

	pending, err = repo.PullPending(10)
	require.NoError(t, err)
	require.Empty(t, pending)

	stats, err = repo.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, stats.PendingCount)
	require.True(t, stats.OldestPendingAt.IsZero())
}

func TestOutboxRepository_PullPendingRespectsLimit(t *testing.T) {
	store := openStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	for i := 0; i < 3; i++ {
		_, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: "transaction",
			AggregateID:   "tx-limit",
			EventType:     "transaction.created",
			Payload:       json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}

	pending, err := repo.PullPending(2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
}
