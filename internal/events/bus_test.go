package events

import (
	"testing"

	"github.com/mmcdole/reviewnotes/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeByType(t *testing.T) {
	bus := NewBus(nil)
	var got []domain.Event
	bus.Subscribe(domain.EventSyncCompleted, func(e domain.Event) { got = append(got, e) })

	bus.Emit(domain.Event{Type: domain.EventSyncStarted, PlaylistID: "pl"})
	bus.Emit(domain.Event{Type: domain.EventSyncCompleted, PlaylistID: "pl"})

	require.Len(t, got, 1)
	assert.Equal(t, domain.EventSyncCompleted, got[0].Type)
	assert.False(t, got[0].At.IsZero())
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsub := bus.Subscribe(domain.EventDraftSaved, func(domain.Event) { calls++ })
	unsubAll := bus.SubscribeAll(func(domain.Event) { calls++ })
	assert.Equal(t, 2, bus.ListenerCount(domain.EventDraftSaved))

	bus.Emit(domain.Event{Type: domain.EventDraftSaved})
	unsub()
	unsubAll()
	bus.Emit(domain.Event{Type: domain.EventDraftSaved})

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, bus.ListenerCount(domain.EventDraftSaved))
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	bus := NewBus(nil)
	delivered := false
	bus.Subscribe(domain.EventPlaylistCreated, func(domain.Event) { panic("boom") })
	bus.Subscribe(domain.EventPlaylistCreated, func(domain.Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Emit(domain.Event{Type: domain.EventPlaylistCreated})
	})
	assert.True(t, delivered)
}

func TestHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	var unsub func()
	unsub = bus.Subscribe(domain.EventSyncFailed, func(domain.Event) {
		calls++
		unsub()
	})

	bus.Emit(domain.Event{Type: domain.EventSyncFailed})
	bus.Emit(domain.Event{Type: domain.EventSyncFailed})
	assert.Equal(t, 1, calls)
}

func TestChannelDropsWhenFull(t *testing.T) {
	ch := make(chan domain.Event, 1)
	h := Channel(ch)
	h(domain.Event{Type: domain.EventSyncStarted})
	h(domain.Event{Type: domain.EventSyncCompleted})

	require.Len(t, ch, 1)
	assert.Equal(t, domain.EventSyncStarted, (<-ch).Type)
}
