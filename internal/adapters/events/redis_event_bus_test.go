package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/knowledgeanalytics/internal/domain/entities"
	"github.com/zatekoja/knowledgeanalytics/internal/domain/providers"
)

func TestDecodeEvent(t *testing.T) {
	event, err := decodeEvent(`{"id":"e1","event_type":"attempt.recorded","restaurant_id":"r1","user_id":"u1","attempt_id":"a1","timestamp":"2024-06-15T12:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, entities.AnalyticsEventAttemptRecorded, event.EventType)
	assert.Equal(t, "r1", event.RestaurantID)
	assert.Equal(t, "a1", event.AttemptID)

	_, err = decodeEvent(`not json`)
	assert.Error(t, err)

	_, err = decodeEvent(`{"id":"e2","event_type":"restaurant.reset"}`)
	assert.ErrorContains(t, err, "no restaurant id")
}

func TestRedisEventBus_BroadcastSkipsFullSubscribers(t *testing.T) {
	bus := NewRedisEventBus(nil)
	defer bus.cancel()

	fast := make(chan *entities.AnalyticsEvent, 1)
	full := make(chan *entities.AnalyticsEvent)
	bus.subscribers[providers.EventChannelAnalytics] = map[chan *entities.AnalyticsEvent]struct{}{
		fast: {},
		full: {},
	}

	event := entities.NewAnalyticsEvent(entities.AnalyticsEventRestaurantReset, "r1")
	bus.broadcast(providers.EventChannelAnalytics, event)

	select {
	case got := <-fast:
		assert.Equal(t, event, got)
	default:
		t.Fatal("expected event on buffered subscriber")
	}
}

func TestRedisEventBus_RemoveSubscriberClosesOnce(t *testing.T) {
	bus := NewRedisEventBus(nil)
	defer bus.cancel()

	ch := make(chan *entities.AnalyticsEvent, 1)
	bus.subscribers["c"] = map[chan *entities.AnalyticsEvent]struct{}{ch: {}}

	bus.removeSubscriber("c", ch)
	bus.removeSubscriber("c", ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Empty(t, bus.subscribers)
}
