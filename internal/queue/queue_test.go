package queue

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAssignsIDsAndPreservesFIFO(t *testing.T) {
	q := New(10, 10)

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := q.Enqueue(fmt.Sprintf("msg-%d", i), "c1", SourceWebChat, WebChatMetadata{})
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	for i := 0; i < 5; i++ {
		msg, ok := q.Peek()
		require.True(t, ok)
		assert.Equal(t, ids[i], msg.ID)
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
		require.NoError(t, q.StartProcessing(msg.ID))
		require.NoError(t, q.Complete(msg.ID, "ok"))
	}

	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestEnqueueFullQueue(t *testing.T) {
	q := New(2, 10)

	_, err := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)
	_, err = q.Enqueue("b", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)

	_, err = q.Enqueue("c", "c1", SourceWebChat, WebChatMetadata{})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestRequeueGoesToHeadAndIncrementsRetry(t *testing.T) {
	q := New(10, 10)

	first, err := q.Enqueue("first", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)
	second, err := q.Enqueue("second", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)

	require.NoError(t, q.StartProcessing(first))
	require.NoError(t, q.Requeue(first))

	// The requeued message is back at the head, ahead of the later arrival.
	msg, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, first, msg.ID)
	assert.Equal(t, 1, msg.RetryCount)
	assert.Equal(t, StatusPending, msg.Status)

	got, ok := q.Get(second)
	require.True(t, ok)
	assert.Equal(t, 0, got.RetryCount)
}

func TestRequeueRequiresProcessing(t *testing.T) {
	q := New(10, 10)
	id, err := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)

	assert.ErrorIs(t, q.Requeue(id), ErrNotProcessing)
	assert.ErrorIs(t, q.Requeue("nope"), ErrNotFound)
}

func TestTerminalStatusReachedExactlyOnce(t *testing.T) {
	q := New(10, 10)

	id, err := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, err)
	require.NoError(t, q.StartProcessing(id))
	require.NoError(t, q.Complete(id, "done"))

	// Re-finishing a terminal message is rejected.
	assert.ErrorIs(t, q.Complete(id, "again"), ErrNotFound)
	assert.ErrorIs(t, q.Fail(id, "boom"), ErrNotFound)
	assert.ErrorIs(t, q.Cancel(id), ErrNotFound)

	stats := q.Stats()
	assert.Equal(t, 1, stats.TotalProcessed)
	assert.Equal(t, 0, stats.TotalFailed)
}

func TestStartProcessingRejectsSecondClaim(t *testing.T) {
	q := New(10, 10)

	a, _ := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	b, _ := q.Enqueue("b", "c1", SourceWebChat, WebChatMetadata{})

	require.NoError(t, q.StartProcessing(a))
	assert.ErrorIs(t, q.StartProcessing(b), ErrAlreadyProcessing)
	assert.Equal(t, a, q.CurrentMessageID())
}

func TestCancelPendingAndProcessing(t *testing.T) {
	q := New(10, 10)

	a, _ := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	b, _ := q.Enqueue("b", "c1", SourceWebChat, WebChatMetadata{})

	require.NoError(t, q.Cancel(a))
	got, ok := q.Get(a)
	require.True(t, ok)
	assert.Equal(t, StatusCancelled, got.Status)

	require.NoError(t, q.StartProcessing(b))
	require.NoError(t, q.Cancel(b))
	assert.Empty(t, q.CurrentMessageID())
}

func TestFailCountsInStats(t *testing.T) {
	q := New(10, 10)

	id, _ := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, q.StartProcessing(id))
	require.NoError(t, q.Fail(id, "delivery failed"))

	stats := q.Stats()
	assert.Equal(t, 1, stats.TotalFailed)
	assert.Equal(t, 0, stats.TotalProcessed)

	got, _ := q.Get(id)
	assert.Equal(t, "delivery failed", got.Error)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestHistoryBounded(t *testing.T) {
	q := New(10, 3)

	var ids []string
	for i := 0; i < 5; i++ {
		id, _ := q.Enqueue(fmt.Sprintf("m%d", i), "c1", SourceWebChat, WebChatMetadata{})
		require.NoError(t, q.StartProcessing(id))
		require.NoError(t, q.Complete(id, "ok"))
		ids = append(ids, id)
	}

	history := q.History()
	require.Len(t, history, 3)
	assert.Equal(t, ids[2], history[0].ID)
	assert.Equal(t, ids[4], history[2].ID)

	// Truncated messages are forgotten entirely.
	_, ok := q.Get(ids[0])
	assert.False(t, ok)
}

func TestSubscribeReceivesLifecycleEvents(t *testing.T) {
	q := New(10, 10)
	events, unsubscribe := q.Subscribe()
	defer unsubscribe()

	id, _ := q.Enqueue("a", "c1", SourceWebChat, WebChatMetadata{})
	require.NoError(t, q.StartProcessing(id))
	require.NoError(t, q.Complete(id, "ok"))

	var types []EventType
	for i := 0; i < 3; i++ {
		event := <-events
		types = append(types, event.Type)
	}
	assert.Equal(t, []EventType{EventEnqueued, EventProcessingStarted, EventCompleted}, types)
}
