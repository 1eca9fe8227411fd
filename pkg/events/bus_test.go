package events

import (
	"testing"

	"github.com/jscyril/golang_media_player/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	volume := bus.Subscribe(api.EventVolumeChanged)
	all := bus.SubscribeAll()

	bus.Publish(api.PlayerEvent{Type: api.EventVolumeChanged, Payload: float32(0.5)})
	bus.Publish(api.PlayerEvent{Type: api.EventEndOfMedia})

	ev := <-volume
	assert.Equal(t, api.EventVolumeChanged, ev.Type)
	assert.Equal(t, float32(0.5), ev.Payload)
	assert.Len(t, volume, 0)

	require.Len(t, all, 2)
	assert.Equal(t, api.EventVolumeChanged, (<-all).Type)
	assert.Equal(t, api.EventEndOfMedia, (<-all).Type)
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(api.EventPositionChanged)
	for i := 0; i < 1000; i++ {
		bus.Publish(api.PlayerEvent{Type: api.EventPositionChanged})
	}
	assert.Equal(t, cap(ch), len(ch))
}

func TestUnsubscribeAndClose(t *testing.T) {
	bus := NewEventBus()

	ch := bus.SubscribeAll()
	bus.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok, "unsubscribed channel should be closed")

	other := bus.Subscribe(api.EventError, api.EventEndOfMedia)
	bus.Close()
	_, ok = <-other
	assert.False(t, ok)

	// Closing twice and publishing after close are harmless
	bus.Close()
	bus.Publish(api.PlayerEvent{Type: api.EventError})

	late := bus.SubscribeAll()
	_, ok = <-late
	assert.False(t, ok)
}
