package event_bus

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishReachesSubscribers(t *testing.T) {
	bus := NewEventBus()

	var received []Event
	bus.Subscribe(EventsReconciled, func(e Event) error {
		received = append(received, e)
		return nil
	})

	payload := ReconciledPayload{UserID: 1, Upserted: 3}
	bus.Publish(NewEvent(context.Background(), EventsReconciled, payload))

	require.Len(t, received, 1)
	assert.Equal(t, EventsReconciled, received[0].Type)
	assert.Equal(t, payload, received[0].Data.(ReconciledPayload))
}

func TestEventBus_UnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()

	count := 0
	unsubscribe := bus.Subscribe(CacheCleared, func(e Event) error {
		count++
		return nil
	})

	bus.Publish(NewEvent(context.Background(), CacheCleared, ClearedPayload{UserID: 1}))
	unsubscribe()
	bus.Publish(NewEvent(context.Background(), CacheCleared, ClearedPayload{UserID: 1}))

	assert.Equal(t, 1, count)
}

func TestEventBus_HandlerErrorDoesNotBlockOthers(t *testing.T) {
	bus := NewEventBus()

	delivered := false
	bus.Subscribe(CacheFallbackServed, func(e Event) error {
		return fmt.Errorf("subscriber failure")
	})
	bus.Subscribe(CacheFallbackServed, func(e Event) error {
		delivered = true
		return nil
	})

	bus.Publish(NewEvent(context.Background(), CacheFallbackServed, FallbackPayload{UserID: 1}))

	assert.True(t, delivered)
}

func TestEventBus_TypesAreIsolated(t *testing.T) {
	bus := NewEventBus()

	count := 0
	bus.Subscribe(EventsReconciled, func(e Event) error {
		count++
		return nil
	})

	bus.Publish(NewEvent(context.Background(), CacheCleared, ClearedPayload{UserID: 1}))

	assert.Equal(t, 0, count)
}
