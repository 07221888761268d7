// Package events is a small typed publish/subscribe bus. Dispatch is
// synchronous and each handler runs isolated, so a panicking subscriber
// does not stop delivery to the rest.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/reviewnotes/internal/domain"
)

type subscription struct {
	id      uint64
	handler domain.EventHandler
}

// Bus implements domain.EventEmitter
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	byType map[domain.EventType][]subscription
	all    []subscription
	now    func() time.Time
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byType: make(map[domain.EventType][]subscription),
		now:    time.Now,
		logger: logger,
	}
}

// Subscribe registers handler for one event type and returns a function
// that removes it.
func (b *Bus) Subscribe(t domain.EventType, handler domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.byType[t] = append(b.byType[t], subscription{id: id, handler: handler})
	return func() { b.unsubscribe(t, id) }
}

// SubscribeAll registers handler for every event type.
func (b *Bus) SubscribeAll(handler domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription{id: id, handler: handler})
	return func() { b.unsubscribe("", id) }
}

func (b *Bus) unsubscribe(t domain.EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t == "" {
		b.all = without(b.all, id)
		return
	}
	b.byType[t] = without(b.byType[t], id)
	if len(b.byType[t]) == 0 {
		delete(b.byType, t)
	}
}

func without(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// Emit delivers e to its type's subscribers, then to catch-all subscribers.
// A zero At is stamped with the current time.
func (b *Bus) Emit(e domain.Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.byType[e.Type])+len(b.all))
	targets = append(targets, b.byType[e.Type]...)
	targets = append(targets, b.all...)
	b.mu.RUnlock()

	for _, s := range targets {
		b.deliver(s.handler, e)
	}
}

func (b *Bus) deliver(h domain.EventHandler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "event", e.Type, "playlistID", e.PlaylistID, "panic", r)
		}
	}()
	h(e)
}

// ListenerCount reports how many handlers would receive an event of type t.
func (b *Bus) ListenerCount(t domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byType[t]) + len(b.all)
}

// Channel adapts a channel into a handler. Sends never block; events are
// dropped when the channel is full.
func Channel(ch chan<- domain.Event) domain.EventHandler {
	return func(e domain.Event) {
		select {
		case ch <- e:
		default:
		}
	}
}
