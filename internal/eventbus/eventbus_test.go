package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New()
	a, unsubA := bus.Subscribe()
	b, unsubB := bus.Subscribe()
	defer unsubA()
	defer unsubB()

	bus.Publish(MessageEvent{
		ConversationID: "c1",
		From:           Participant{Type: ParticipantUser, ID: "u1"},
		Content:        "hello",
	})

	for _, ch := range []<-chan MessageEvent{a, b} {
		select {
		case ev := <-ch:
			assert.Equal(t, "c1", ev.ConversationID)
			assert.Equal(t, "hello", ev.Content)
			assert.False(t, ev.Timestamp.IsZero(), "publish stamps missing timestamps")
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}
}

func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	bus := New()
	_, unsub := bus.Subscribe()
	defer unsub()

	// Overfill the subscriber buffer without draining it; the publisher
	// must drop rather than stall.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer+10; i++ {
			bus.Publish(MessageEvent{ConversationID: "c1", Content: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	events, unsub := bus.Subscribe()
	require.Equal(t, 1, bus.SubscriberCount())

	unsub()
	assert.Zero(t, bus.SubscriberCount())

	// Unsubscribe closes the channel.
	_, ok := <-events
	assert.False(t, ok)

	// Calling it again is harmless.
	unsub()
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := New()
	events, _ := bus.Subscribe()

	bus.Close()
	_, ok := <-events
	assert.False(t, ok)

	// Publish and Subscribe after close are safe no-ops.
	bus.Publish(MessageEvent{ConversationID: "c1"})
	late, _ := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok)

	bus.Close()
}
