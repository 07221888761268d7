// Package cache holds hydrated playlists in memory. Entries expire a fixed
// TTL after insertion; when full, the least recently accessed fifth is
// evicted before inserting. The cache is read-through only: callers write
// durable storage first and then invalidate.
package cache

import (
	"sort"
	"sync"
	"time"
)

// Defaults
const (
	DefaultTTL           = 5 * time.Minute
	DefaultCapacity      = 50
	DefaultSweepInterval = time.Minute
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	lastAccess time.Time
}

// EntryStat describes one cached entry.
type EntryStat struct {
	Key     string        `json:"key"`
	Age     time.Duration `json:"age"`
	Expired bool          `json:"expired"`
}

// TTLMap is a bounded map with per-entry TTL and LRU eviction.
type TTLMap[V any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[V]
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewTTLMap creates a TTLMap. Non-positive ttl or capacity take the defaults.
func NewTTLMap[V any](ttl time.Duration, capacity int, now func() time.Time) *TTLMap[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &TTLMap[V]{
		entries:  make(map[string]*entry[V]),
		ttl:      ttl,
		capacity: capacity,
		now:      now,
	}
}

func (m *TTLMap[V]) expired(e *entry[V], now time.Time) bool {
	return now.Sub(e.insertedAt) > m.ttl
}

// Get returns the value for key. An expired entry is evicted and reported
// as a miss.
func (m *TTLMap[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		return zero, false
	}
	now := m.now()
	if m.expired(e, now) {
		delete(m.entries, key)
		return zero, false
	}
	e.lastAccess = now
	return e.value, true
}

// Set inserts or replaces key. Replacing resets the TTL.
func (m *TTLMap[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictLRU()
	}
	now := m.now()
	m.entries[key] = &entry[V]{value: value, insertedAt: now, lastAccess: now}
}

// evictLRU drops the least recently accessed 20% (at least one). Caller holds mu.
func (m *TTLMap[V]) evictLRU() {
	n := m.capacity / 5
	if n < 1 {
		n = 1
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return m.entries[keys[i]].lastAccess.Before(m.entries[keys[j]].lastAccess)
	})
	if n > len(keys) {
		n = len(keys)
	}
	for _, k := range keys[:n] {
		delete(m.entries, k)
	}
}

func (m *TTLMap[V]) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// Sweep evicts every expired entry and returns how many went.
func (m *TTLMap[V]) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for k, e := range m.entries {
		if m.expired(e, now) {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *TTLMap[V]) Clear() {
	m.mu.Lock()
	m.entries = make(map[string]*entry[V])
	m.mu.Unlock()
}

func (m *TTLMap[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats reports every entry without touching access times, sorted by key.
func (m *TTLMap[V]) Stats() []EntryStat {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	out := make([]EntryStat, 0, len(m.entries))
	for k, e := range m.entries {
		out = append(out, EntryStat{Key: k, Age: now.Sub(e.insertedAt), Expired: m.expired(e, now)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
